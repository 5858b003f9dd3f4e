package queue_test

import (
	"errors"
	"io"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/queue"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	paused  int
	resumed int
	ended   int
}

func (d *fakeDispatcher) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused++
}

func (d *fakeDispatcher) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumed++
}

func (d *fakeDispatcher) End() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ended++
}

func (d *fakeDispatcher) counts() (int, int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused, d.resumed, d.ended
}

type fakeConnection struct {
	disconnects int
	err         error
}

func (c *fakeConnection) ChannelID() string { return "voice" }
func (c *fakeConnection) Play(io.ReadCloser, audio.Events) audio.Dispatcher {
	return nil
}
func (c *fakeConnection) Disconnect() error {
	c.disconnects++
	return c.err
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func entry(id string) *queue.Entry {
	return queue.NewEntry(&audio.Track{ID: id, Title: "track " + id}, "user", "User", time.Unix(0, 0))
}

func ids(entries []*queue.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID())
	}
	return out
}

var _ = Describe("Session", func() {
	var (
		session *queue.Session
		starts  int
		clk     *clock
	)

	BeforeEach(func() {
		starts = 0
		clk = &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		session = queue.NewSession("guild", queue.Options{
			VotePercentage: 0.6,
			HistoryLimit:   3,
			Now:            clk.Now,
			Hooks: queue.Hooks{
				OnStart: func(*queue.Session) { starts++ },
			},
		})
	})

	Describe("Enqueue", func() {
		It("fires the start hook once, on the first entry", func() {
			Expect(session.Suspended()).To(BeTrue())
			Expect(session.Enqueue(entry("a"))).To(Succeed())
			Expect(session.Enqueue(entry("b"))).To(Succeed())
			Expect(session.Enqueue(entry("c"))).To(Succeed())

			Expect(starts).To(Equal(1))
			Expect(session.Suspended()).To(BeFalse())
			Expect(ids(session.Queue())).To(Equal([]string{"a", "b", "c"}))
		})

		It("rejects a track that is already queued", func() {
			session.Enqueue(entry("a"))
			session.Enqueue(entry("b"))

			Expect(session.Enqueue(entry("a"))).To(MatchError(queue.ErrDuplicate))
			Expect(session.Queue()).To(HaveLen(2))
		})

		It("rejects the track that is currently playing", func() {
			session.Enqueue(entry("a"))
			session.AdvanceForward()

			Expect(session.Enqueue(entry("a"))).To(MatchError(queue.ErrDuplicate))
			Expect(session.Queue()).To(BeEmpty())
		})

		It("keeps history and queue disjoint when a played track is requeued", func() {
			session.Enqueue(entry("a"))
			session.Enqueue(entry("b"))
			session.AdvanceForward()
			session.AdvanceForward()
			Expect(ids(session.History())).To(Equal([]string{"a"}))

			Expect(session.Enqueue(entry("a"))).To(Succeed())
			Expect(session.History()).To(BeEmpty())
			Expect(ids(session.Queue())).To(Equal([]string{"a"}))
		})

		It("never holds duplicates across queue and current", func() {
			for _, id := range []string{"a", "b", "a", "c", "b", "c", "d"} {
				session.Enqueue(entry(id))
				if len(session.Queue()) == 2 && session.Current() == nil {
					session.AdvanceForward()
				}
			}

			seen := map[string]bool{}
			all := session.Queue()
			if cur := session.Current(); cur != nil {
				all = append(all, cur)
			}
			for _, e := range all {
				Expect(seen).NotTo(HaveKey(e.ID()))
				seen[e.ID()] = true
			}
		})
	})

	Describe("advancing", func() {
		BeforeEach(func() {
			for _, id := range []string{"a", "b", "c"} {
				session.Enqueue(entry(id))
			}
		})

		It("pops the queue head and records history", func() {
			Expect(session.AdvanceForward().ID()).To(Equal("a"))
			Expect(ids(session.Queue())).To(Equal([]string{"b", "c"}))
			Expect(session.History()).To(BeEmpty())

			Expect(session.AdvanceForward().ID()).To(Equal("b"))
			Expect(ids(session.Queue())).To(Equal([]string{"c"}))
			Expect(ids(session.History())).To(Equal([]string{"a"}))
		})

		It("ends with no current entry once the queue is drained", func() {
			session.AdvanceForward()
			session.AdvanceForward()
			session.AdvanceForward()
			Expect(session.AdvanceForward()).To(BeNil())
			Expect(session.Current()).To(BeNil())
			Expect(ids(session.History())).To(Equal([]string{"a", "b", "c"}))
		})

		It("restores the previous state when going forward then back", func() {
			session.AdvanceForward()
			queueBefore := ids(session.Queue())
			currentBefore := session.Current().ID()

			session.AdvanceForward()
			session.AdvanceBackward()

			Expect(session.Current().ID()).To(Equal(currentBefore))
			Expect(ids(session.Queue())).To(ConsistOf(queueBefore))
		})

		It("puts the displaced entry at the front of the queue when going back", func() {
			session.AdvanceForward()
			session.AdvanceForward()

			Expect(session.AdvanceBackward().ID()).To(Equal("a"))
			Expect(ids(session.Queue())).To(Equal([]string{"b", "c"}))
			Expect(session.History()).To(BeEmpty())
		})

		It("leaves everything untouched while looping", func() {
			session.AdvanceForward()
			session.AdvanceForward()
			session.ToggleLoop()

			current := session.Current()
			queued := ids(session.Queue())
			history := ids(session.History())

			for i := 0; i < 5; i++ {
				Expect(session.AdvanceForward()).To(BeIdenticalTo(current))
				Expect(session.AdvanceBackward()).To(BeIdenticalTo(current))
			}

			Expect(ids(session.Queue())).To(Equal(queued))
			Expect(ids(session.History())).To(Equal(history))
		})

		It("bounds the history", func() {
			for _, id := range []string{"d", "e", "f"} {
				session.Enqueue(entry(id))
			}
			for i := 0; i < 6; i++ {
				session.AdvanceForward()
			}
			Expect(ids(session.History())).To(Equal([]string{"c", "d", "e"}))
		})

		It("clears every vote group", func() {
			session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 10)
			session.CastVote(queue.VoteLoop, queue.Voter{ID: "u1"}, 10)

			session.AdvanceForward()

			Expect(session.VoteCount(queue.VoteNext)).To(BeZero())
			Expect(session.VoteCount(queue.VoteLoop)).To(BeZero())
		})

		It("drops a discarded entry without recording it", func() {
			session.AdvanceForward()
			Expect(session.DiscardCurrent().ID()).To(Equal("a"))
			Expect(session.AdvanceForward().ID()).To(Equal("b"))
			Expect(session.History()).To(BeEmpty())
		})
	})

	Describe("elapsed time", func() {
		It("is unknown before the track starts", func() {
			_, ok := session.Elapsed()
			Expect(ok).To(BeFalse())
		})

		It("excludes the time spent paused", func() {
			session.MarkStarted()
			clk.Advance(5 * time.Second)
			session.Pause()
			clk.Advance(25 * time.Second)

			elapsed, ok := session.Elapsed()
			Expect(ok).To(BeTrue())
			Expect(elapsed).To(Equal(5 * time.Second))

			session.Resume()
			clk.Advance(10 * time.Second)

			elapsed, _ = session.Elapsed()
			Expect(elapsed).To(Equal(15 * time.Second))
			Expect(session.IsPaused()).To(BeFalse())
		})

		It("ignores pause without a started track", func() {
			session.Pause()
			Expect(session.IsPaused()).To(BeFalse())
		})
	})

	Describe("Shuffle", func() {
		DescribeTable("refuses short queues",
			func(n int) {
				want := []string{}
				for i := 0; i < n; i++ {
					id := string(rune('a' + i))
					session.Enqueue(entry(id))
					want = append(want, id)
				}
				Expect(session.Shuffle()).To(BeFalse())
				Expect(ids(session.Queue())).To(Equal(want))
			},
			Entry("empty", 0),
			Entry("one", 1),
			Entry("two", 2),
		)

		It("keeps the same entries", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				session.Enqueue(entry(id))
			}
			Expect(session.Shuffle()).To(BeTrue())
			Expect(ids(session.Queue())).To(ConsistOf("a", "b", "c", "d"))
		})
	})

	Describe("CastVote", func() {
		var d *fakeDispatcher

		BeforeEach(func() {
			d = &fakeDispatcher{}
			for _, id := range []string{"a", "b", "c"} {
				session.Enqueue(entry(id))
			}
			session.AdvanceForward()
			session.AttachDispatcher(d)
			session.MarkStarted()
		})

		It("rejects bots", func() {
			Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: "bot", Bot: true}, 5)).
				To(Equal(queue.VoteNoPermission))
		})

		It("reports repeat votes", func() {
			Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 5)).To(Equal(queue.VoteRecorded))
			Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 5)).To(Equal(queue.VoteAlreadyVoted))
		})

		It("executes only when supporters strictly exceed the threshold", func() {
			for _, id := range []string{"u1", "u2", "u3"} {
				Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: id}, 5)).To(Equal(queue.VoteRecorded))
			}
			_, _, ended := d.counts()
			Expect(ended).To(BeZero())

			Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: "u4"}, 5)).To(Equal(queue.VoteExecuted))
			_, _, ended = d.counts()
			Expect(ended).To(Equal(1))
			Expect(session.VoteCount(queue.VoteNext)).To(BeZero())
		})

		It("lets moderators act alone", func() {
			Expect(session.CastVote(queue.VoteLoop, queue.Voter{ID: "mod", Moderator: true}, 10)).
				To(Equal(queue.VoteExecuted))
			Expect(session.Looping()).To(BeTrue())
		})

		It("lets anyone act alone in a small channel", func() {
			Expect(session.CastVote(queue.VoteLoop, queue.Voter{ID: "u1"}, 2)).To(Equal(queue.VoteExecuted))
			Expect(session.Looping()).To(BeTrue())
		})

		It("toggles the session and the stream together on pause", func() {
			Expect(session.CastVote(queue.VotePause, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			Expect(session.IsPaused()).To(BeTrue())

			Expect(session.CastVote(queue.VotePause, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			Expect(session.IsPaused()).To(BeFalse())

			paused, resumed, _ := d.counts()
			Expect(paused).To(Equal(1))
			Expect(resumed).To(Equal(1))
		})

		It("steps back and asks for a restart on previous", func() {
			session.AdvanceForward()
			Expect(session.Current().ID()).To(Equal("b"))

			Expect(session.CastVote(queue.VotePrevious, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			Expect(session.Current().ID()).To(Equal("a"))
			Expect(ids(session.Queue())).To(Equal([]string{"b", "c"}))
			Expect(session.TakeRestart()).To(BeTrue())
			Expect(session.TakeRestart()).To(BeFalse())
		})

		It("keeps the current entry and asks for a restart on replay", func() {
			Expect(session.CastVote(queue.VoteReplay, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			Expect(session.Current().ID()).To(Equal("a"))
			Expect(session.TakeRestart()).To(BeTrue())
			_, _, ended := d.counts()
			Expect(ended).To(Equal(1))
		})

		It("refuses a pause before the track has started", func() {
			session.AdvanceForward()

			Expect(session.CastVote(queue.VotePause, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteNotStarted))
			Expect(session.IsPaused()).To(BeFalse())
			Expect(session.VoteCount(queue.VotePause)).To(BeZero())

			session.MarkStarted()
			Expect(session.CastVote(queue.VotePause, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			Expect(session.IsPaused()).To(BeTrue())
		})

		It("holds a skip until the next stream is attached", func() {
			session.DetachDispatcher(d)

			Expect(session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 1)).To(Equal(queue.VoteExecuted))
			_, _, ended := d.counts()
			Expect(ended).To(BeZero())

			next := &fakeDispatcher{}
			Expect(session.AttachDispatcher(next)).To(BeFalse())
			Expect(session.Dispatcher()).To(BeNil())
			Expect(session.AttachDispatcher(next)).To(BeTrue())
		})

		It("drops a held skip once the session advances", func() {
			session.DetachDispatcher(d)
			session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 1)

			session.AdvanceForward()
			Expect(session.AttachDispatcher(&fakeDispatcher{})).To(BeTrue())
		})

		It("retracts votes", func() {
			session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 5)
			Expect(session.RetractVote(queue.VoteNext, queue.Voter{ID: "u1"})).To(BeTrue())
			Expect(session.RetractVote(queue.VoteNext, queue.Voter{ID: "u1"})).To(BeFalse())
			Expect(session.RetractVote(queue.VoteNext, queue.Voter{ID: "bot", Bot: true})).To(BeFalse())
		})

		It("retracts a member from every group", func() {
			session.CastVote(queue.VoteNext, queue.Voter{ID: "u1"}, 5)
			session.CastVote(queue.VoteReplay, queue.Voter{ID: "u1"}, 5)
			session.RetractAll("u1")
			Expect(session.VoteCount(queue.VoteNext)).To(BeZero())
			Expect(session.VoteCount(queue.VoteReplay)).To(BeZero())
		})
	})

	Describe("status timer", func() {
		It("stops while paused and restarts on resume", func() {
			session.Enqueue(entry("a"))
			session.AdvanceForward()
			session.MarkStarted()
			session.StartStatusTimer(time.Hour, func() {})
			Expect(session.StatusTimerRunning()).To(BeTrue())

			session.Pause()
			Expect(session.StatusTimerRunning()).To(BeFalse())

			session.Resume()
			Expect(session.StatusTimerRunning()).To(BeTrue())

			session.Destroy()
			Expect(session.StatusTimerRunning()).To(BeFalse())
		})
	})

	Describe("Destroy", func() {
		It("ends the stream and disconnects once", func() {
			d := &fakeDispatcher{}
			conn := &fakeConnection{}
			session.SetConnection(conn)
			session.AttachDispatcher(d)

			session.Destroy()
			session.Destroy()

			_, _, ended := d.counts()
			Expect(ended).To(Equal(1))
			Expect(conn.disconnects).To(Equal(1))
			Expect(session.Destroyed()).To(BeTrue())
		})

		It("swallows disconnect failures", func() {
			conn := &fakeConnection{err: errors.New("gateway gone")}
			session.SetConnection(conn)
			Expect(session.Destroy).NotTo(Panic())
			Expect(session.Connection()).To(BeNil())
		})

		It("refuses new entries afterwards", func() {
			session.Destroy()
			Expect(session.Enqueue(entry("a"))).To(MatchError(queue.ErrDestroyed))
			Expect(starts).To(BeZero())
		})

		It("refuses a stream attached afterwards", func() {
			session.Destroy()
			Expect(session.AttachDispatcher(&fakeDispatcher{})).To(BeFalse())
			Expect(session.Dispatcher()).To(BeNil())
		})
	})
})

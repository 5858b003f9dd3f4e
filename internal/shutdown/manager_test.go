package shutdown_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"quidque.com/discord-jukebox/internal/shutdown"
)

type component struct {
	name  string
	order *[]string
	err   error
	block bool
}

func (c *component) Shutdown(ctx context.Context) error {
	*c.order = append(*c.order, c.name)
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.err
}

func (c *component) Name() string { return c.name }

var _ = Describe("Manager", func() {
	var (
		manager *shutdown.Manager
		order   []string
	)

	BeforeEach(func() {
		manager = shutdown.NewManager()
		order = nil
	})

	It("stops components in reverse order", func() {
		manager.Register(&component{name: "client", order: &order})
		manager.Register(&component{name: "driver", order: &order})

		Expect(manager.IsShuttingDown()).To(BeFalse())
		Expect(manager.Shutdown(time.Second)).To(Succeed())
		Expect(order).To(Equal([]string{"driver", "client"}))
		Expect(manager.IsShuttingDown()).To(BeTrue())

		manager.Wait()
	})

	It("keeps going after a failure and reports it", func() {
		failure := errors.New("boom")
		manager.Register(&component{name: "client", order: &order})
		manager.Register(&component{name: "driver", order: &order, err: failure})

		err := manager.Shutdown(time.Second)
		Expect(err).To(MatchError(failure))
		Expect(err.Error()).To(ContainSubstring("driver"))
		Expect(order).To(Equal([]string{"driver", "client"}))
	})

	It("gives up after the timeout", func() {
		manager.Register(&component{name: "client", order: &order})
		manager.Register(&component{name: "driver", order: &order, block: true})

		err := manager.Shutdown(20 * time.Millisecond)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(order).To(Equal([]string{"driver"}))
	})

	It("only runs once", func() {
		manager.Register(&component{name: "client", order: &order})

		Expect(manager.Shutdown(time.Second)).To(Succeed())
		Expect(manager.Shutdown(time.Second)).To(HaveOccurred())
		Expect(order).To(HaveLen(1))
	})
})

package command

import (
	"strings"

	"quidque.com/discord-jukebox/internal/downloader"
)

type Verb int

const (
	VerbNone Verb = iota
	VerbAdd
	VerbSearch
	VerbUnsupported
	VerbDestroy
	VerbNext
	VerbPrevious
	VerbHelp
	VerbPause
	VerbResume
	VerbReplay
	VerbLoop
	VerbShuffle
	VerbQueue
	VerbNow
)

var verbNames = map[Verb]string{
	VerbNone:        "none",
	VerbAdd:         "add",
	VerbSearch:      "search",
	VerbUnsupported: "unsupported",
	VerbDestroy:     "destroy",
	VerbNext:        "next",
	VerbPrevious:    "previous",
	VerbHelp:        "help",
	VerbPause:       "pause",
	VerbResume:      "resume",
	VerbReplay:      "replay",
	VerbLoop:        "loop",
	VerbShuffle:     "shuffle",
	VerbQueue:       "queue",
	VerbNow:         "now",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "unknown"
}

var aliases = map[string]Verb{
	"destroy": VerbDestroy,
	"leave":   VerbDestroy,
	"kill":    VerbDestroy,
	"stop":    VerbDestroy,

	"skip": VerbNext,
	"next": VerbNext,
	"s":    VerbNext,

	"previous": VerbPrevious,
	"prev":     VerbPrevious,
	"back":     VerbPrevious,

	"help": VerbHelp,
	"h":    VerbHelp,
	"?":    VerbHelp,

	"pause": VerbPause,

	"resume":  VerbResume,
	"unpause": VerbResume,

	"replay": VerbReplay,
	"rewind": VerbReplay,

	"loop":   VerbLoop,
	"repeat": VerbLoop,

	"shuffle": VerbShuffle,
	"mix":     VerbShuffle,

	"queue": VerbQueue,
	"q":     VerbQueue,
	"list":  VerbQueue,

	"now":     VerbNow,
	"np":      VerbNow,
	"playing": VerbNow,
}

// Command is a classified command body.
type Command struct {
	Verb Verb
	// URLs holds the YouTube links of an add command.
	URLs []string
	// Rejected holds links to other sites found next to them.
	Rejected []string
	Query    string
}

// Parse classifies a command body. A lone alias is a control verb; any
// links make it an add; anything else is a search.
func Parse(body string) Command {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Command{Verb: VerbNone}
	}

	if len(fields) == 1 {
		if verb, ok := aliases[strings.ToLower(fields[0])]; ok {
			return Command{Verb: verb}
		}
	}

	var cmd Command
	for _, f := range fields {
		f = strings.Trim(f, "<>")
		switch {
		case downloader.IsYouTubeURL(f):
			cmd.URLs = append(cmd.URLs, f)
		case downloader.IsURL(f):
			cmd.Rejected = append(cmd.Rejected, f)
		}
	}

	switch {
	case len(cmd.URLs) > 0:
		cmd.Verb = VerbAdd
	case len(cmd.Rejected) > 0:
		cmd.Verb = VerbUnsupported
	default:
		cmd.Verb = VerbSearch
		cmd.Query = strings.Join(fields, " ")
	}
	return cmd
}

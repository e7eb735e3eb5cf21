package engine

import (
	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/transport"
)

// CommandKind selects which Command fields are meaningful.
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdSwapSnapshot
	CmdSetParam
	CmdGestureBegin
	CmdGestureEnd
	CmdPlay
	CmdStop
	CmdSeek
	CmdSetTempo
	CmdSetLoop
	CmdNoteOn
	CmdNoteOff
	CmdAllNotesOff
	CmdLaunchClip
	CmdStopClip
	CmdLaunchScene
	CmdStopAll
)

var commandNames = [...]string{
	"none", "swap_snapshot", "set_param", "gesture_begin", "gesture_end",
	"play", "stop", "seek", "set_tempo", "set_loop",
	"note_on", "note_off", "all_notes_off",
	"launch_clip", "stop_clip", "launch_scene", "stop_all",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Command is one control-to-render message. It is a plain value so the
// queue never allocates.
type Command struct {
	Kind CommandKind

	Snapshot *Snapshot

	Node  graph.NodeID
	Param node.ParamID
	Value float32

	Beat  float64
	Tempo float64
	Loop  transport.Loop

	Pitch    uint8
	Velocity float32

	Track arrange.TrackID
	Clip  arrange.ClipID
	Scene int
}

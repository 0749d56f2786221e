package dsl

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind is the closed enum of DSL step operations (spec.md §4.10, §9's
// "closed enum of DSL operations parsed once from script" design note).
type Kind int

const (
	KindExpect Kind = iota
	KindEnsure
	KindGlbFilter
	KindLocFilter
	KindAOFilter
	KindCurrentObj
	KindTick
	KindPeek
	KindPoke
	KindFill
	KindProbe
	KindContinue
	KindQueryCurrent
	KindSendEvent
	KindCommand
	KindNote
)

// Step is one elaborated DSL operation: a Kind tag plus a typed payload,
// exactly the "closed enum" shape the design note calls for -- a malformed
// step is therefore a parse-time structural error, never a runtime
// dictionary lookup failure.
type Step struct {
	Kind Kind

	Expect string
	Ensure EnsureArgs
	Filter []string // glb_filter / loc_filter tokens, "-" prefix = subtract

	AOFilter     AOFilterArgs
	CurrentObj   CurrentObjArgs
	Tick         TickArgs
	Peek         PeekArgs
	Poke         PokeArgs
	Fill         FillArgs
	Probe        ProbeArgs
	QueryCurrent string // kind name
	SendEvent    SendEventArgs
	Command      CommandArgs
	Note         NoteArgs
}

type EnsureArgs struct {
	Contains  string `yaml:"contains,omitempty"`
	HasPrefix string `yaml:"prefix,omitempty"`
	Equals    string `yaml:"equals,omitempty"`
}

type AOFilterArgs struct {
	Name   string `yaml:"name"`
	Remove bool   `yaml:"remove,omitempty"`
}

type CurrentObjArgs struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

type TickArgs struct {
	Rate uint8 `yaml:"rate"`
}

type PeekArgs struct {
	Offset uint16 `yaml:"offset"`
	Size   uint8  `yaml:"size"`
	Num    uint8  `yaml:"num"`
}

type PokeArgs struct {
	Offset uint16    `yaml:"offset"`
	Size   uint8     `yaml:"size"`
	Data   string    `yaml:"data,omitempty"` // hex-encoded
	Pack   *PackArgs `yaml:"pack,omitempty"`
}

// PackArgs is the structured stand-in for the DSL's pack(fmt, ...) helper
// (spec.md §4.10): a Python struct.pack-style format string plus the values
// to encode, since there is no embedded expression language to call pack()
// inline (see DESIGN.md Open Question on pack()).
type PackArgs struct {
	Format string   `yaml:"format"`
	Values []uint64 `yaml:"values"`
}

type FillArgs struct {
	Offset uint16 `yaml:"offset"`
	Size   uint8  `yaml:"size"`
	Num    uint8  `yaml:"num"`
	Item   uint32 `yaml:"item"`
}

type ProbeArgs struct {
	Func string `yaml:"func"`
	Data uint32 `yaml:"data"`
}

type SendEventArgs struct {
	Kind   string    `yaml:"kind"` // publish|post|init|dispatch
	Sig    string    `yaml:"sig"`
	Prio   uint8     `yaml:"prio,omitempty"`
	Params string    `yaml:"params,omitempty"` // hex-encoded
	Pack   *PackArgs `yaml:"pack,omitempty"`
}

type CommandArgs struct {
	Name   string `yaml:"name"`
	Param1 uint32 `yaml:"p1,omitempty"`
	Param2 uint32 `yaml:"p2,omitempty"`
	Param3 uint32 `yaml:"p3,omitempty"`
}

type NoteArgs struct {
	Msg    string   `yaml:"msg"`
	Dest   []string `yaml:"dest,omitempty"` // SCREEN, TRACE
}

// UnmarshalYAML decodes a single-key mapping step (e.g. `{expect: "..."}`
// or `{tick: {rate: 0}}`) into the matching Kind and payload.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("dsl: step must be a single-key mapping, got %d content nodes", len(node.Content))
	}
	key := node.Content[0].Value
	val := node.Content[1]

	switch key {
	case "expect":
		s.Kind = KindExpect
		return val.Decode(&s.Expect)
	case "ensure":
		s.Kind = KindEnsure
		return val.Decode(&s.Ensure)
	case "glb_filter":
		s.Kind = KindGlbFilter
		return val.Decode(&s.Filter)
	case "loc_filter":
		s.Kind = KindLocFilter
		return val.Decode(&s.Filter)
	case "ao_filter":
		s.Kind = KindAOFilter
		return val.Decode(&s.AOFilter)
	case "current_obj":
		s.Kind = KindCurrentObj
		return val.Decode(&s.CurrentObj)
	case "tick":
		s.Kind = KindTick
		return val.Decode(&s.Tick)
	case "peek":
		s.Kind = KindPeek
		return val.Decode(&s.Peek)
	case "poke":
		s.Kind = KindPoke
		return val.Decode(&s.Poke)
	case "fill":
		s.Kind = KindFill
		return val.Decode(&s.Fill)
	case "probe":
		s.Kind = KindProbe
		return val.Decode(&s.Probe)
	case "continue":
		s.Kind = KindContinue
		return nil
	case "query_current":
		s.Kind = KindQueryCurrent
		return val.Decode(&s.QueryCurrent)
	case "send_event":
		s.Kind = KindSendEvent
		return val.Decode(&s.SendEvent)
	case "command":
		s.Kind = KindCommand
		return val.Decode(&s.Command)
	case "note":
		s.Kind = KindNote
		if val.Kind == yaml.ScalarNode {
			return val.Decode(&s.Note.Msg)
		}
		return val.Decode(&s.Note)
	default:
		return fmt.Errorf("dsl: unknown step operation %q", key)
	}
}

// decodeHex decodes a hex-encoded parameter blob, tolerating an empty
// string (no payload bytes).
func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

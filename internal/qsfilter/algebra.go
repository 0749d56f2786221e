package qsfilter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qutest-go/qutest/internal/qsinfo"
)

// Arg is one argument to glb_filter/loc_filter: either an int record ID
// (negative means "remove") or a string group/record token (a leading '-'
// means "remove"), per spec.md §4.4.
type Arg struct {
	Int    *int
	String *string
}

// IntArg builds an integer Arg.
func IntArg(id int) Arg { return Arg{Int: &id} }

// StrArg builds a string Arg.
func StrArg(s string) Arg { return Arg{String: &s} }

var globalGroups = map[string]Mask128{
	"ALL": globalAll,
	"ON":  globalAll,
	"OFF": globalOff,
	"SM":  globalSM,
	"AO":  globalAOPostV8,
	"QF":  globalQF,
	"TE":  globalTE,
	"EQ":  globalEQ,
	"MP":  globalMP,
	"SC":  globalSC,
	"SEM": globalSEM,
	"MTX": globalMTX,
	"U0":  globalU0,
	"U1":  globalU1,
	"U2":  globalU2,
	"U3":  globalU3,
	"U4":  globalU4,
	"UA":  globalUA,
}

var localGroups = map[string]Mask128{
	"ALL":    localAll,
	"ON":     localAll,
	"OFF":    globalOff,
	"IDS_ALL": localAll,
	"IDS_AO":  localAO,
	"IDS_EP":  localEP,
	"IDS_EQ":  localEQ,
	"IDS_AP":  localAP,
}

// ComposeGlobal reduces args to a single 128-bit global filter mask via the
// left-fold in spec.md §4.4: "mask = 0; for arg in args: mask = arg<0 ?
// mask & ~bits(|arg|) : mask | bits(arg)". info is consulted so the AO
// group resolves to the pre- or post-v8 bit position (spec.md §9 Open
// Question (b)).
func ComposeGlobal(info *qsinfo.Info, args ...Arg) (Mask128, error) {
	return compose(globalGroups, func(name string) Mask128 {
		if name == "AO" && info != nil && !info.AtLeast(8, 0) {
			return globalAOPreV8
		}
		return globalGroups[name]
	}, args...)
}

// ComposeLocal reduces args to a single 128-bit local (QS-ID) filter mask.
func ComposeLocal(args ...Arg) (Mask128, error) {
	return compose(localGroups, func(name string) Mask128 { return localGroups[name] }, args...)
}

func compose(groups map[string]Mask128, resolve func(name string) Mask128, args ...Arg) (Mask128, error) {
	var mask Mask128
	for _, a := range args {
		bits, neg, err := resolveArg(groups, resolve, a)
		if err != nil {
			return Mask128{}, err
		}
		if neg {
			mask = mask.AndNot(bits)
		} else {
			mask = mask.Or(bits)
		}
	}
	return mask, nil
}

func resolveArg(groups map[string]Mask128, resolve func(string) Mask128, a Arg) (Mask128, bool, error) {
	switch {
	case a.Int != nil:
		id := *a.Int
		neg := id < 0
		if neg {
			id = -id
		}
		b, ok := bitForID(id)
		if !ok {
			return Mask128{}, false, fmt.Errorf("qsfilter: record ID %d out of range 0..127", id)
		}
		return b, neg, nil

	case a.String != nil:
		s := strings.TrimSpace(*a.String)
		neg := strings.HasPrefix(s, "-")
		if neg {
			s = s[1:]
		}
		if _, ok := groups[s]; ok {
			return resolve(s), neg, nil
		}
		if id, err := strconv.Atoi(s); err == nil {
			b, ok := bitForID(id)
			if !ok {
				return Mask128{}, false, fmt.Errorf("qsfilter: record ID %d out of range 0..127", id)
			}
			return b, neg, nil
		}
		if id, ok := RecordIDByName(s); ok {
			b, _ := bitForID(id)
			return b, neg, nil
		}
		return Mask128{}, false, fmt.Errorf("qsfilter: unknown filter token %q", s)

	default:
		return Mask128{}, false, fmt.Errorf("qsfilter: empty filter argument")
	}
}

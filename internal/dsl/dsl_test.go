package dsl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicScript = `
tests:
  - name: "event dispatch"
    opt: []
    steps:
      - glb_filter: [ON, "-SC"]
      - expect: "@timestamp Trg-Ack  QS_RX_GLB_FILTER"
      - current_obj: {kind: AO, name: "AO_Philo<0>"}
      - tick: {rate: 0}
      - expect: "@timestamp Trg-Ack  QS_RX_TICK"
      - ensure: {contains: "Trg-Ack"}
`

func writeScriptFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesStepsIntoClosedEnum(t *testing.T) {
	dir := t.TempDir()
	path := writeScriptFile(t, dir, "basic.qutest.yaml", basicScript)

	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Tests, 1)

	tc := s.Tests[0]
	assert.Equal(t, "event dispatch", tc.Title())
	require.Len(t, tc.Steps, 6)
	assert.Equal(t, KindGlbFilter, tc.Steps[0].Kind)
	assert.Equal(t, []string{"ON", "-SC"}, tc.Steps[0].Filter)
	assert.Equal(t, KindExpect, tc.Steps[1].Kind)
	assert.Equal(t, KindCurrentObj, tc.Steps[2].Kind)
	assert.Equal(t, "AO_Philo<0>", tc.Steps[2].CurrentObj.Name)
	assert.Equal(t, KindTick, tc.Steps[3].Kind)
	assert.Equal(t, uint8(0), tc.Steps[3].Tick.Rate)
	assert.Equal(t, KindEnsure, tc.Steps[5].Kind)
	assert.Equal(t, "Trg-Ack", tc.Steps[5].Ensure.Contains)
}

func TestLoadResolvesIncludeRelativeToScriptDir(t *testing.T) {
	dir := t.TempDir()
	writeScriptFile(t, dir, "common.qutest.yaml", `
tests:
  - name: "shared setup"
    steps:
      - expect: "@timestamp Trg-Ack  QS_RX_RESET"
`)
	main := writeScriptFile(t, dir, "main.qutest.yaml", `
include: [common.qutest.yaml]
tests:
  - name: "main test"
    steps:
      - continue: null
`)

	s, err := Load(main)
	require.NoError(t, err)
	require.Len(t, s.Tests, 2)
	assert.Equal(t, "shared setup", s.Tests[0].Title())
	assert.Equal(t, "main test", s.Tests[1].Title())
}

func TestBDDSugarDesugarsToNotes(t *testing.T) {
	dir := t.TempDir()
	path := writeScriptFile(t, dir, "bdd.qutest.yaml", `
tests:
  - scenario: "philosopher eats"
    given: "a hungry philosopher"
    when: "the fork is free"
    then: "the philosopher eats"
    and: ["the fork is released"]
    steps:
      - continue: null
`)
	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Tests, 1)
	notes := s.Tests[0].Notes()
	assert.Equal(t, []string{
		"GIVEN a hungry philosopher",
		"WHEN the fork is free",
		"THEN the philosopher eats",
		"AND the fork is released",
	}, notes)
}

func TestUnknownStepOperationIsParseTimeError(t *testing.T) {
	dir := t.TempDir()
	path := writeScriptFile(t, dir, "bad.qutest.yaml", `
tests:
  - name: "bad"
    steps:
      - frobnicate: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestPackValuesEncodesLittleEndian(t *testing.T) {
	b, err := packValues("BHI", []uint64{0x01, 0x0203, 0x04050607})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03, 0x02, 0x07, 0x06, 0x05, 0x04}, b)
}

func TestPackValuesRejectsLengthMismatch(t *testing.T) {
	_, err := packValues("BB", []uint64{1})
	assert.Error(t, err)
}

func TestSendEventPackFieldParsesInScript(t *testing.T) {
	dir := t.TempDir()
	path := writeScriptFile(t, dir, "pack.qutest.yaml", `
tests:
  - name: "pack event"
    steps:
      - send_event:
          sig: "PHILO_TIMEOUT_SIG"
          kind: publish
          pack:
            format: "BH"
            values: [1, 512]
`)
	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Tests[0].Steps, 1)
	st := s.Tests[0].Steps[0]
	require.Equal(t, KindSendEvent, st.Kind)
	require.NotNil(t, st.SendEvent.Pack)
	assert.Equal(t, "BH", st.SendEvent.Pack.Format)
	assert.Equal(t, []uint64{1, 512}, st.SendEvent.Pack.Values)
}

func TestEvalEnsureVariants(t *testing.T) {
	assert.True(t, evalEnsure(EnsureArgs{Contains: "Ack"}, "0000000001 Trg-Ack  QS_RX_TICK"))
	assert.False(t, evalEnsure(EnsureArgs{Contains: "nope"}, "0000000001 Trg-Ack  QS_RX_TICK"))
	assert.True(t, evalEnsure(EnsureArgs{HasPrefix: "0000000001"}, "0000000001 Trg-Ack  QS_RX_TICK"))
	assert.True(t, evalEnsure(EnsureArgs{Equals: "exact"}, "exact"))
}

package tui

import (
	"fieldcap/internal/geo"
	"fieldcap/internal/record"
)

// Every async result carries the generation of the screen that launched
// it. The model drops results whose generation no longer matches, so a
// response landing after the user navigated away cannot corrupt the
// current screen.

type sessionBoundMsg struct {
	gen     int
	session record.Session
	err     error
}

type fixResolvedMsg struct {
	gen    int
	result geo.Result
}

type submitProgressMsg struct {
	gen     int
	percent int
	step    string
}

type submitDoneMsg struct {
	gen int
	err error
}

type editSavedMsg struct {
	gen int
	err error
}

type historyLoadedMsg struct {
	gen   int
	tests []record.TestRecord
	err   error
}

type testDeletedMsg struct {
	gen    int
	testID string
	err    error
}

package session

import (
	"time"

	"github.com/TemdigitalAi/voice-dialog-service/internal/provider"
	"github.com/TemdigitalAi/voice-dialog-service/internal/turn"
)

// event is one item on a session's event queue. Everything that can touch
// session state arrives here, so the loop goroutine is the only writer and
// ordering is structural rather than locked.
type event interface {
	isEvent()
}

// mediaFrameEvent carries one inbound audio frame from the media transport.
type mediaFrameEvent struct {
	audio []byte
}

// speechEvent carries one transcription provider event.
type speechEvent struct {
	ev provider.SpeechEvent
}

// safetyTimerEvent fires when the utterance safety timer elapses. The
// generation lets the loop discard fires from timers that were re-armed or
// stopped after the fire was already in flight.
type safetyTimerEvent struct {
	gen uint64
}

// checkinTimerEvent fires after a stretch of caller silence.
type checkinTimerEvent struct {
	gen uint64
}

// turnDoneEvent reports a finished turn back to the loop.
type turnDoneEvent struct {
	result    turn.Result
	startedAt time.Time
	system    bool
}

// callEndEvent ends the session from the media transport side.
type callEndEvent struct{}

// streamErrorEvent reports a failed transcription stream.
type streamErrorEvent struct {
	err error
}

func (mediaFrameEvent) isEvent()   {}
func (speechEvent) isEvent()       {}
func (safetyTimerEvent) isEvent()  {}
func (checkinTimerEvent) isEvent() {}
func (turnDoneEvent) isEvent()     {}
func (callEndEvent) isEvent()      {}
func (streamErrorEvent) isEvent()  {}

package progress

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder is a Printer that keeps all messages in memory, prefixed with
// their level. It is used in tests.
type Recorder struct {
	m        sync.Mutex
	messages []string
}

var _ Printer = (*Recorder)(nil)

func (r *Recorder) add(level, msg string, args ...interface{}) {
	r.m.Lock()
	defer r.m.Unlock()
	r.messages = append(r.messages, level+": "+strings.TrimRight(fmt.Sprintf(msg, args...), "\n"))
}

func (r *Recorder) E(msg string, args ...interface{})  { r.add("E", msg, args...) }
func (r *Recorder) P(msg string, args ...interface{})  { r.add("P", msg, args...) }
func (r *Recorder) V(msg string, args ...interface{})  { r.add("V", msg, args...) }
func (r *Recorder) VV(msg string, args ...interface{}) { r.add("VV", msg, args...) }

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]string(nil), r.messages...)
}

// Contains reports whether a message containing s was recorded.
func (r *Recorder) Contains(s string) bool {
	for _, m := range r.Messages() {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

package streamrepair

// holdback is the number of trailing repaired runes withheld from release,
// so a duplication spanning the release boundary can still be collapsed
// once the rest of it arrives. It exceeds twice the maximum fragment span.
const holdback = 64

// Filter applies the repair passes to a token stream incrementally. It
// never blocks waiting for more tokens and never reorders them: each Push
// releases the stable repaired prefix accumulated so far, and Flush
// releases the rest. Concatenating every release yields exactly
// Repair(whole stream).
type Filter struct {
	raw      []rune
	released int
	message  string
	flushed  bool
}

func NewFilter() *Filter {
	return &Filter{}
}

// Push appends a token to the stream and returns repaired text that is now
// safe to release, which is often empty.
func (f *Filter) Push(token string) string {
	f.raw = append(f.raw, []rune(token)...)
	repaired := []rune(Repair(string(f.raw)))
	safe := len(repaired) - holdback
	if safe <= f.released {
		return ""
	}
	out := string(repaired[f.released:safe])
	f.released = safe
	return out
}

// Flush terminates the stream and returns the withheld remainder.
func (f *Filter) Flush() string {
	repaired := []rune(Repair(string(f.raw)))
	f.message = string(repaired)
	f.flushed = true
	if f.released >= len(repaired) {
		return ""
	}
	out := string(repaired[f.released:])
	f.released = len(repaired)
	return out
}

// Message returns the complete repaired text. Valid only after Flush.
func (f *Filter) Message() string {
	return f.message
}

package state

// LogEntry is a message in a keyed log.
type LogEntry struct {
	Offset uint64
	Msg    uint64
}

// LogPayload holds an append-only log per key along with each keys
// committed offset.
//
// Offsets start at 1 and are contiguous within a key. Committing an offset
// doesn't remove entries, so a consumer can poll from before its committed
// offset.
type LogPayload struct {
	logs      map[string][]uint64
	committed map[string]uint64
}

func NewLogPayload() *LogPayload {
	return &LogPayload{
		logs:      make(map[string][]uint64),
		committed: make(map[string]uint64),
	}
}

// Append adds msg to the log for key. Returns the offset of the entry.
func (p *LogPayload) Append(key string, msg uint64) uint64 {
	p.logs[key] = append(p.logs[key], msg)
	return uint64(len(p.logs[key]))
}

// Poll returns the entries of key with offset at least from, in offset
// order. A from of 0 is treated as 1. Returns at most limit entries unless
// limit is 0.
func (p *LogPayload) Poll(key string, from uint64, limit int) []LogEntry {
	if from == 0 {
		from = 1
	}

	log := p.logs[key]
	if from > uint64(len(log)) {
		return []LogEntry{}
	}

	msgs := log[from-1:]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	entries := make([]LogEntry, 0, len(msgs))
	for i, msg := range msgs {
		entries = append(entries, LogEntry{
			Offset: from + uint64(i),
			Msg:    msg,
		})
	}
	return entries
}

// Commit records offset as committed for key. Commits never move backwards.
// Returns whether the committed offset changed.
func (p *LogPayload) Commit(key string, offset uint64) bool {
	if offset <= p.committed[key] {
		return false
	}
	p.committed[key] = offset
	return true
}

// Committed returns the committed offset for key, or false if nothing has
// been committed.
func (p *LogPayload) Committed(key string) (uint64, bool) {
	offset, ok := p.committed[key]
	return offset, ok
}

// CommittedOffsets returns a copy of every committed offset.
func (p *LogPayload) CommittedOffsets() map[string]uint64 {
	offsets := make(map[string]uint64, len(p.committed))
	for k, v := range p.committed {
		offsets[k] = v
	}
	return offsets
}

// LatestOffsets returns the offset of the last entry of each key.
func (p *LogPayload) LatestOffsets() map[string]uint64 {
	offsets := make(map[string]uint64, len(p.logs))
	for k, log := range p.logs {
		offsets[k] = uint64(len(log))
	}
	return offsets
}

// Len returns the total number of entries across every key.
func (p *LogPayload) Len() int {
	n := 0
	for _, log := range p.logs {
		n += len(log)
	}
	return n
}

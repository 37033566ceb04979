package tilegrid

// Handle is the content of one loaded tile. The grid releases every
// handle it accepted exactly once, including handles that complete for
// a tile that was pruned in the meantime.
type Handle interface {
	Release()
}

// Source produces tile content. Load must call done exactly once, on
// the goroutine that drives the grid; asynchronous sources deliver
// their completions through a post function (see urltile). The
// returned abort tells the source the grid no longer wants the tile;
// a source may ignore it and complete anyway, the grid discards the
// late result and releases its handle.
type Source interface {
	Load(key TileKey, done func(Handle, error)) (abort func())
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(key TileKey, done func(Handle, error)) (abort func())

func (f SourceFunc) Load(key TileKey, done func(Handle, error)) (abort func()) {
	return f(key, done)
}

// NopHandle is a Handle with no resources behind it.
type NopHandle struct{}

func (NopHandle) Release() {}

package config

// SetRenameFunc replaces the rename step of atomic writes and returns a restore func.
func SetRenameFunc(fn func(oldpath, newpath string) error) func() {
	prev := renameFunc
	renameFunc = fn
	return func() { renameFunc = prev }
}

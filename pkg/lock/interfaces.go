package lock

//go:generate mockgen -destination=mocks/lock.go -package=mocks . Lock,Locker

// Locker acquires exclusive lockfiles.
type Locker interface {
	// Acquire creates the lockfile at path. It fails with ErrAlreadyHeld when the file exists.
	Acquire(path string) (Lock, error)
}

// Lock is a held lockfile.
type Lock interface {
	Path() string
	// Release removes the lockfile. Releasing twice is a no-op.
	Release() error
}

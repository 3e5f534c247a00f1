package sftp

// Hooks is the optional observer interface, one method per request
// kind. The dispatcher calls a request's hook once the request's
// arguments have been decoded and before the backend carries out the
// operation (for REALPATH: after Verify, before Stat), so a hook does
// not see the outcome of the request; only the INIT hook runs after its
// response has been written. Grounded on original_source/pysftpserver/hook.py's SftpHook: a
// no-op-by-default callback set the engine owns no behavior decision
// on. A hook's error or panic never changes the SFTP response; see
// dispatch.go's callHook for the isolation wrapper.
type Hooks interface {
	Init()
	Realpath(name string)
	Stat(name string)
	Lstat(name string)
	Fstat(handle string)
	Setstat(name string, attrs *Attr)
	Fsetstat(handle string, attrs *Attr)
	Opendir(name string)
	Readdir(handle string)
	Close(handle string)
	Open(name string, flags int, attrs *Attr)
	Read(handle string, offset int64, size uint32)
	Write(handle string, offset int64, chunk []byte)
	Mkdir(name string, attrs *Attr)
	Rmdir(name string)
	Remove(name string)
	Rename(oldName, newName string)
	Symlink(linkName, target string)
	Readlink(name string)
}

// NopHooks implements Hooks with empty methods. Embed it in a partial
// hook implementation to only override the callbacks of interest.
type NopHooks struct{}

func (NopHooks) Init()                                   {}
func (NopHooks) Realpath(name string)                     {}
func (NopHooks) Stat(name string)                         {}
func (NopHooks) Lstat(name string)                        {}
func (NopHooks) Fstat(handle string)                      {}
func (NopHooks) Setstat(name string, attrs *Attr)         {}
func (NopHooks) Fsetstat(handle string, attrs *Attr)      {}
func (NopHooks) Opendir(name string)                      {}
func (NopHooks) Readdir(handle string)                    {}
func (NopHooks) Close(handle string)                      {}
func (NopHooks) Open(name string, flags int, attrs *Attr) {}
func (NopHooks) Read(handle string, offset int64, size uint32) {}
func (NopHooks) Write(handle string, offset int64, chunk []byte) {}
func (NopHooks) Mkdir(name string, attrs *Attr) {}
func (NopHooks) Rmdir(name string) {}
func (NopHooks) Remove(name string) {}
func (NopHooks) Rename(oldName, newName string) {}
func (NopHooks) Symlink(linkName, target string) {}
func (NopHooks) Readlink(name string) {}

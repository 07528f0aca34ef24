// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package linuxerr contains errno codes exported as *errors.Error pointers.
// This allows for fast comparison and return operations comparable to
// unix.Errno constants.
//
// The VFS error taxonomy maps onto these values as follows:
//
//	DoesNotExist     ENOENT
//	AlreadyExists    EEXIST
//	NotADirectory    ENOTDIR
//	IsADirectory     EISDIR
//	InvalidArgument  EINVAL
//	OutOfMemory      ENOMEM
//	Busy             EBUSY
//	NotImplemented   ENOSYS
//	PermissionDenied EACCES
//	WouldBlock       EAGAIN
//	InvalidOperation EPERM
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"kvfs.dev/kvfs/pkg/abi/linux/errno"
	"kvfs.dev/kvfs/pkg/errors"
)

const maxErrno uint32 = errno.EHWPOISON + 1

// The following errors are semantically identical to the unix.Errno of the
// same name, but are distinct types. The Errno method returns a number that
// can be compared against unix.Errno (unix.Errno(ENOENT.Errno()) ==
// unix.ENOENT). Converting a unix.Errno into one of these goes through
// ErrorFromUnix.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errno.EPERM, "operation not permitted")
	ENOENT                = errors.New(errno.ENOENT, "no such file or directory")
	EINTR                 = errors.New(errno.EINTR, "interrupted system call")
	EIO                   = errors.New(errno.EIO, "I/O error")
	ENXIO                 = errors.New(errno.ENXIO, "no such device or address")
	EBADF                 = errors.New(errno.EBADF, "bad file number")
	EAGAIN                = errors.New(errno.EAGAIN, "try again")
	ENOMEM                = errors.New(errno.ENOMEM, "out of memory")
	EACCES                = errors.New(errno.EACCES, "permission denied")
	EFAULT                = errors.New(errno.EFAULT, "bad address")
	ENOTBLK               = errors.New(errno.ENOTBLK, "block device required")
	EBUSY                 = errors.New(errno.EBUSY, "device or resource busy")
	EEXIST                = errors.New(errno.EEXIST, "file exists")
	EXDEV                 = errors.New(errno.EXDEV, "cross-device link")
	ENODEV                = errors.New(errno.ENODEV, "no such device")
	ENOTDIR               = errors.New(errno.ENOTDIR, "not a directory")
	EISDIR                = errors.New(errno.EISDIR, "is a directory")
	EINVAL                = errors.New(errno.EINVAL, "invalid argument")
	ENFILE                = errors.New(errno.ENFILE, "file table overflow")
	EMFILE                = errors.New(errno.EMFILE, "too many open files")
	ENOTTY                = errors.New(errno.ENOTTY, "not a typewriter")
	EFBIG                 = errors.New(errno.EFBIG, "file too large")
	ENOSPC                = errors.New(errno.ENOSPC, "no space left on device")
	ESPIPE                = errors.New(errno.ESPIPE, "illegal seek")
	EROFS                 = errors.New(errno.EROFS, "read-only file system")
	EMLINK                = errors.New(errno.EMLINK, "too many links")
	ERANGE                = errors.New(errno.ERANGE, "math result not representable")

	ENAMETOOLONG = errors.New(errno.ENAMETOOLONG, "file name too long")
	ENOSYS       = errors.New(errno.ENOSYS, "invalid system call number")
	ENOTEMPTY    = errors.New(errno.ENOTEMPTY, "directory not empty")
	ELOOP        = errors.New(errno.ELOOP, "too many symbolic links encountered")
	ENODATA      = errors.New(errno.ENODATA, "no data available")
	EOVERFLOW    = errors.New(errno.EOVERFLOW, "value too large for defined data type")
	EBADFD       = errors.New(errno.EBADFD, "file descriptor in bad state")
	EOPNOTSUPP   = errors.New(errno.EOPNOTSUPP, "operation not supported on transport endpoint")
	ETIMEDOUT    = errors.New(errno.ETIMEDOUT, "connection timed out")
	ESTALE       = errors.New(errno.ESTALE, "stale file handle")
	ECANCELED    = errors.New(errno.ECANCELED, "operation Canceled")
)

// Aliases share the pointer of the value they alias.
var (
	EWOULDBLOCK = EAGAIN
	ENOTSUP     = EOPNOTSUPP
)

// errorSlice maps errno numbers to the values above. Unknown numbers are nil.
var errorSlice = func() []*errors.Error {
	s := make([]*errors.Error, maxErrno)
	for _, e := range []*errors.Error{
		EPERM, ENOENT, EINTR, EIO, ENXIO, EBADF, EAGAIN, ENOMEM, EACCES,
		EFAULT, ENOTBLK, EBUSY, EEXIST, EXDEV, ENODEV, ENOTDIR, EISDIR,
		EINVAL, ENFILE, EMFILE, ENOTTY, EFBIG, ENOSPC, ESPIPE, EROFS,
		EMLINK, ERANGE, ENAMETOOLONG, ENOSYS, ENOTEMPTY, ELOOP, ENODATA,
		EOVERFLOW, EBADFD, EOPNOTSUPP, ETIMEDOUT, ESTALE, ECANCELED,
	} {
		s[e.Errno()] = e
	}
	return s
}()

// ErrorFromUnix returns a linuxerr from a unix.Errno. Errnos without a
// predefined value get a fresh *errors.Error carrying the host message.
func ErrorFromUnix(err unix.Errno) error {
	if err == unix.Errno(0) {
		return nil
	}
	if uint32(err) < maxErrno {
		if e := errorSlice[err]; e != nil {
			return e
		}
	}
	return errors.New(errno.Errno(err), err.Error())
}

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = unix.Errno(e.Errno())
	}
	return unixErr
}

// Equals reports whether err is e, the unix.Errno equivalent of e, or an
// error wrapping either of them.
func Equals(e *errors.Error, err error) bool {
	unixErr := ToUnix(e)
	if err == nil {
		return e == noError
	}
	if e == err || unixErr == err {
		return true
	}
	var ke *errors.Error
	if goerrors.As(err, &ke) {
		return e != noError && ke.Errno() == e.Errno()
	}
	var ue unix.Errno
	if goerrors.As(err, &ue) {
		return ue == unixErr
	}
	return false
}

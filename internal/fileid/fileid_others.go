// Copyright (c) the forklift authors
// Licensed under the MIT license

//go:build !unix

package fileid

func Get(pathname string) (ID, error) {
	return ID{}, ErrNotOS
}

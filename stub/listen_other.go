// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package stub

import "syscall"

func setReuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}

// Package all is a meta-package that imports all store implementations.
//
// This is a HACK to make tests and policy validation see every backend.
package all

import (
	_ "github.com/TecharoHQ/vox/lib/store/badger"
	_ "github.com/TecharoHQ/vox/lib/store/bbolt"
	_ "github.com/TecharoHQ/vox/lib/store/memory"
	_ "github.com/TecharoHQ/vox/lib/store/valkey"
)

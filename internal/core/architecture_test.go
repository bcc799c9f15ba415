package core

import (
	"testing"

	"examist/testutil"
)

func TestCoreDoesNotImportBackends(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.BackendImportForbidden, "the store only sees API handles through action transforms")
}

package siminput

import (
	"testing"

	"tcrkp/testutil"
)

func TestLayering(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.BatchImportForbidden, testutil.ProcessImportForbidden),
		"siminput is a pure model package")
}

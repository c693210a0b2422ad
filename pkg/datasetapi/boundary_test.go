package datasetapi

import (
	"testing"

	"transitions/testutil"
)

func TestContractHasNoInternalOrIODependencies(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InternalImportForbidden, testutil.IOImportForbidden),
		"datasetapi is the template contract shared by hosts and must not reach into internal packages or perform I/O")
}

package sqllite

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
)

var fileSeq int32 = 0

func runTestWithSetup(t *testing.T, testFunc func(t *testing.T, filename string)) {
	n := atomic.AddInt32(&fileSeq, 1)
	filename := fmt.Sprintf("cadenza-test-%d-%d.db", os.Getpid(), n)
	defer os.Remove(filename)
	os.Setenv("CDZ_DATABASE_TYPE", "SQLLITE")
	os.Setenv("CDZ_DATABASE_SQLLITE_FILE_NAME", filename)
	testFunc(t, filename)
}

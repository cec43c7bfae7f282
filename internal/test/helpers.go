package test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/jskov/backup/internal/errors"

	mrand "math/rand"
)

// Assert fails the test if the condition is false.
func Assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	if !condition {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("\033[31m%s:%d: "+msg+"\033[39m\n\n", append([]interface{}{filepath.Base(file), line}, v...)...)
		tb.FailNow()
	}
}

// OK fails the test if an err is not nil.
func OK(tb testing.TB, err error) {
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("\033[31m%s:%d: unexpected error: %+v\033[39m\n\n", filepath.Base(file), line, err)
		tb.FailNow()
	}
}

// Equals fails the test if exp is not equal to act.
func Equals(tb testing.TB, exp, act interface{}) {
	if !reflect.DeepEqual(exp, act) {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("\033[31m%s:%d:\n\n\texp: %#v\n\n\tgot: %#v\033[39m\n\n", filepath.Base(file), line, exp, act)
		tb.FailNow()
	}
}

// Random returns size bytes of pseudo-random data derived from the seed.
func Random(seed, count int) []byte {
	p := make([]byte, count)

	rnd := mrand.New(mrand.NewSource(int64(seed)))

	for i := 0; i < len(p); i += 8 {
		val := rnd.Int63()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(val >> (8 * j))
		}
	}

	return p
}

// TempDir returns a temporary directory that is removed by t.Cleanup,
// except if TestCleanupTempDirs is set to false.
func TempDir(t testing.TB) string {
	tempdir, err := os.MkdirTemp(TestTempDir, "backup-test-")
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if !TestCleanupTempDirs {
			t.Logf("leaving temporary directory %v used for test", tempdir)
			return
		}

		RemoveAll(t, tempdir)
	})
	return tempdir
}

// WriteFile creates the file name below dir with the given content,
// creating parent directories as needed.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, filepath.FromSlash(name))
	OK(t, os.MkdirAll(filepath.Dir(p), 0755))
	OK(t, os.WriteFile(p, data, 0644))
	return p
}

// RemoveAll resets the permissions of all files and dirs below path and
// removes them afterwards.
func RemoveAll(t testing.TB, path string) {
	err := filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if fi == nil {
			return err
		}
		if fi.IsDir() {
			return os.Chmod(p, 0777)
		}
		return nil
	})
	if err == nil || errors.Is(err, os.ErrNotExist) {
		err = os.RemoveAll(path)
	}
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	OK(t, err)
}

// LookPath returns the absolute path of program, skipping the test when the
// program is not installed.
func LookPath(t testing.TB, program string) string {
	t.Helper()

	p, err := lookPath(program)
	if err != nil {
		SkipDisallowed(t, "LookPath/"+program)
		t.Skipf("%v not available: %v", program, err)
	}
	return p
}

package codecache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/cathon/pkg/bytecode"
)

func sampleCode() *bytecode.CodeObject {
	fn := bytecode.NewCodeObject("f")
	fn.ArgCount = 1
	fn.AddVarname("x")
	fn.EmitArg(bytecode.OpLoadFast, 0)
	fn.Emit(bytecode.OpReturn)

	code := bytecode.NewCodeObject(bytecode.ModuleName)
	code.AddLine(0, 1)
	code.EmitArg(bytecode.OpLoadConst, uint16(code.AddConst(bytecode.CodeConst(fn))))
	code.Emit(bytecode.OpMakeFunction)
	code.EmitArg(bytecode.OpStoreName, uint16(code.AddName("f")))
	code.EmitArg(bytecode.OpLoadConst, uint16(code.AddConst(bytecode.NoneConst())))
	code.Emit(bytecode.OpReturn)
	return code
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	key := Key(0, "def f(x):\n    return x\n")

	if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store err = %v, want ErrNotFound", err)
	}

	want := sampleCode()
	if err := s.Put(key, 0, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Disassemble() != want.Disassemble() {
		t.Errorf("round trip changed the code:\n%s\nwant:\n%s", got.Disassemble(), want.Disassemble())
	}
	if got.LineFor(0) != 1 {
		t.Errorf("line table lost: LineFor(0) = %d", got.LineFor(0))
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTemp(t)
	key := Key(1, "x")
	for i := 0; i < 3; i++ {
		if err := s.Put(key, 1, sampleCode()); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := s.Len(); err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1", n, err)
	}
}

func TestPurge(t *testing.T) {
	s := openTemp(t)
	for _, src := range []string{"a", "b", "c"} {
		if err := s.Put(Key(0, src), 0, sampleCode()); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Purge()
	if err != nil || n != 3 {
		t.Fatalf("Purge() = %d, %v; want 3", n, err)
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("Len() after purge = %d", n)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(Key(0, "y"), 0, sampleCode()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(Key(0, "y")); err != nil {
		t.Errorf("entry did not survive reopen: %v", err)
	}
}

func TestKey(t *testing.T) {
	a := Key(0, "x = 1")
	if a != Key(0, "x = 1") {
		t.Error("Key is not deterministic")
	}
	if a == Key(1, "x = 1") {
		t.Error("mode does not affect the key")
	}
	if a == Key(0, "x = 2") {
		t.Error("source does not affect the key")
	}
	if len(a) != 64 {
		t.Errorf("len(Key) = %d, want 64 hex digits", len(a))
	}
}

func TestBusyTimeoutOnEveryConnection(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	// Hold both connections so the pool has to open a second one.
	var conns []*sql.Conn
	for i := 0; i < 2; i++ {
		c, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		conns = append(conns, c)
	}
	for i, c := range conns {
		var ms int
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&ms); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if ms != busyTimeout {
			t.Errorf("conn %d busy_timeout = %d, want %d", i, ms, busyTimeout)
		}
	}
}

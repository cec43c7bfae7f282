package table

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var tests = []struct {
		create func() *Table
		output string
	}{
		{
			func() *Table {
				return New()
			},
			"",
		},
		{
			func() *Table {
				table := New("first column")
				table.AddRow("first data field")
				return table
			},
			`
first column
----------------
first data field
----------------
`,
		},
		{
			func() *Table {
				table := New("name", "reason")
				table.AddRow("backup-01.crypt", "xxh3 differs")
				table.AddRow("dirA", "missing")
				table.AddFooter("2 mismatches")
				return table
			},
			`
name             reason
-----------------------------
backup-01.crypt  xxh3 differs
dirA             missing
-----------------------------
2 mismatches
`,
		},
		{
			func() *Table {
				table := New("name", "size", "extra")
				table.AddRow("あい", "1")
				table.AddRow("x", "22", "z", "dropped")
				return table
			},
			`
name  size  extra
-----------------
あい  1
x     22    z
-----------------
`,
		},
	}

	for i, test := range tests {
		table := test.create()
		buf := bytes.NewBuffer(nil)
		err := table.Write(buf)
		if err != nil {
			t.Fatal(err)
		}

		want := strings.TrimLeft(test.output, "\n")
		if buf.String() != want {
			t.Errorf("test %d: wrong output\nwant:\n%s\ngot:\n%s", i, want, buf.String())
		}
	}
}

package domain

import "testing"

func TestParseField_Sentinel(t *testing.T) {
	cases := []struct {
		raw     string
		present bool
		out     string
	}{
		{raw: `\N`, present: false, out: ""},
		{raw: "2020", present: true, out: "2020"},
		{raw: "", present: true, out: ""},
		{raw: `\\N`, present: true, out: `\\N`},
	}
	for _, c := range cases {
		o := ParseField(c.raw)
		if o.Present != c.present {
			t.Fatalf("%q: present=%v，期望 %v", c.raw, o.Present, c.present)
		}
		if o.OrEmpty() != c.out {
			t.Fatalf("%q: OrEmpty=%q，期望 %q", c.raw, o.OrEmpty(), c.out)
		}
	}
}

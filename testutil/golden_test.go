package testutil

import (
	"strings"
	"testing"
)

const wrapper = "pub fn Add(a: i32, b: i32) -> i32 {\n    unsafe { crate::detail::Add(a, b) }\n}\n"

func TestCompareWithGoldenMatches(t *testing.T) {
	CompareWithGolden(t, "sample", "wrapper", wrapper)
}

func TestCompareWithGoldenReportsDiff(t *testing.T) {
	if UpdateGoldens {
		t.Skip("diff behavior is not observable in update mode")
	}
	inner := &testing.T{}
	CompareWithGolden(inner, "sample", "wrapper", strings.Replace(wrapper, "i32", "i64", 1))
	if !inner.Failed() {
		t.Fatal("expected a golden mismatch to fail the test")
	}
}

func TestGetGoldenPath(t *testing.T) {
	if got := GetGoldenPath("sample", "wrapper"); got != "testdata/sample/wrapper.golden" {
		t.Errorf("GetGoldenPath = %q", got)
	}
}

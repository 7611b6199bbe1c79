package files

import (
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("prj-1", "Lab Report (final).pdf")
	if !strings.HasPrefix(key, "projects/prj-1/") {
		t.Errorf("key = %q, want projects/prj-1/ prefix", key)
	}
	if !strings.HasSuffix(key, "-Lab-Report-final.pdf") {
		t.Errorf("key = %q, want sanitized filename suffix", key)
	}
}

func TestObjectKeyStripsPath(t *testing.T) {
	key := ObjectKey("prj-1", "../../etc/passwd")
	if strings.Contains(key, "..") {
		t.Errorf("key %q contains path traversal", key)
	}
}

func TestObjectKeyEmptyFilename(t *testing.T) {
	key := ObjectKey("prj-1", "한글파일명")
	if !strings.HasSuffix(key, "-attachment") {
		t.Errorf("key = %q, want attachment fallback", key)
	}
}

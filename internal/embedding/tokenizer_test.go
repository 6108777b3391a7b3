package embedding

import "testing"

func TestSimpleTokenizer(t *testing.T) {
	tok := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tok.Tokenize("hello world", 8)
	if len(inputIDs) != 8 || len(attentionMask) != 8 || len(tokenTypeIDs) != 8 {
		t.Fatalf("expected padded length 8, got %d/%d/%d", len(inputIDs), len(attentionMask), len(tokenTypeIDs))
	}
	if inputIDs[0] != 101 {
		t.Errorf("first token should be [CLS], got %d", inputIDs[0])
	}
	// CLS + 2 words + SEP
	var attended int
	for _, m := range attentionMask {
		if m == 1 {
			attended++
		}
	}
	if attended != 4 {
		t.Errorf("expected 4 attended positions, got %d", attended)
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a\tb\nc  ")
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %v", words)
	}
}

func TestHashString_Deterministic(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") < 0 {
		t.Error("hash should be non-negative")
	}
}

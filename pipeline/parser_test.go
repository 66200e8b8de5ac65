package pipeline

import (
	"testing"
	"time"
)

const sampleExport = `Jan 15, 2025  2:30:15 PM
Me
Hey, are we still on for dinner?

Jan 15, 2025  2:31:05 PM
+15551234567
Yes! See you at 7
(Read by you after 2 minutes, 3 seconds)

Jan 15, 2025  2:32:00 PM
Me
Liked "Yes! See you at 7"

Jan 15, 2025  2:33:10 PM
Me
Great, booking now
/Users/me/Library/Messages/Attachments/ab/12/menu.jpeg
`

func TestParseMessages(t *testing.T) {
	t.Parallel()

	msgs := ParseMessages(sampleExport, "Me", "+15551234567")
	if len(msgs) != 3 {
		t.Fatalf("len(msgs)=%d, want 3 (metadata-only turn must emit nothing)", len(msgs))
	}

	if msgs[0].Sender != SenderSelf || msgs[0].Content != "Hey, are we still on for dinner?" {
		t.Fatalf("msg0=%+v", msgs[0])
	}
	if msgs[1].Sender != SenderContact || msgs[1].Content != "Yes! See you at 7" {
		t.Fatalf("msg1=%+v", msgs[1])
	}
	if msgs[2].Sender != SenderSelf || msgs[2].Content != "Great, booking now" {
		t.Fatalf("msg2=%+v (attachment path must be skipped)", msgs[2])
	}

	if msgs[1].ReadReceipt == nil {
		t.Fatal("msg1 missing read receipt")
	}
	if msgs[1].ReadReceipt.ReadBy != SenderSelf {
		t.Fatalf("ReadBy=%q, want %q", msgs[1].ReadReceipt.ReadBy, SenderSelf)
	}
	if want := 2*time.Minute + 3*time.Second; msgs[1].ReadReceipt.Elapsed != want {
		t.Fatalf("Elapsed=%v, want %v", msgs[1].ReadReceipt.Elapsed, want)
	}

	wantTS := time.Date(2025, time.January, 15, 14, 30, 15, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(wantTS) {
		t.Fatalf("Timestamp=%v, want %v", msgs[0].Timestamp, wantTS)
	}
}

func TestParseMessages_SortedAscending(t *testing.T) {
	t.Parallel()

	raw := `1/16/25 9:00:00 AM
Me
later message

1/15/25 9:00:00 AM
Me
earlier message
`
	msgs := ParseMessages(raw, "Me", "x")
	if len(msgs) != 2 {
		t.Fatalf("len=%d, want 2", len(msgs))
	}
	if msgs[0].Content != "earlier message" || msgs[1].Content != "later message" {
		t.Fatalf("not sorted: %q then %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestParseMessages_MultilineContent(t *testing.T) {
	t.Parallel()

	raw := `2025-01-15 09:00:00
+15551234567
first line
second line
`
	msgs := ParseMessages(raw, "Me", "x")
	if len(msgs) != 1 {
		t.Fatalf("len=%d, want 1", len(msgs))
	}
	if msgs[0].Content != "first line\nsecond line" {
		t.Fatalf("Content=%q", msgs[0].Content)
	}
}

func TestParseElapsedPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		phrase string
		want   time.Duration
	}{
		{"3 hours, 27 minutes, 39 seconds", 3*time.Hour + 27*time.Minute + 39*time.Second},
		{"2 minutes, 3 seconds", 2*time.Minute + 3*time.Second},
		{"1 hour", time.Hour},
		{"45 seconds", 45 * time.Second},
		{"1 minute", time.Minute},
		{"a while", 0},
		{"", 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.phrase, func(t *testing.T) {
			t.Parallel()
			if got := ParseElapsedPhrase(tc.phrase); got != tc.want {
				t.Fatalf("ParseElapsedPhrase(%q)=%v, want %v", tc.phrase, got, tc.want)
			}
		})
	}
}

func TestMergeSequences(t *testing.T) {
	t.Parallel()

	ts := func(min int) time.Time {
		return time.Date(2025, time.January, 15, 9, min, 0, 0, time.UTC)
	}
	a := []Message{{Timestamp: ts(0), Content: "a0"}, {Timestamp: ts(10), Content: "a1"}}
	b := []Message{{Timestamp: ts(5), Content: "b0"}}

	merged := MergeSequences(a, b)
	want := []string{"a0", "b0", "a1"}
	if len(merged) != len(want) {
		t.Fatalf("len=%d, want %d", len(merged), len(want))
	}
	for i, w := range want {
		if merged[i].Content != w {
			t.Fatalf("merged[%d]=%q, want %q", i, merged[i].Content, w)
		}
	}
}

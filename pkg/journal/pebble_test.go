package journal

import (
	"testing"
)

func TestEventJournalReplay(t *testing.T) {
	j, err := OpenEventJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.OnOrderEvent(1, 5, 1000)
	j.OnTrade(0.25, 1000)
	j.OnLogLine([]string{"250", "3", "105", "1", "7", "5", "10", "Limit", "0"})
	if err := j.Flush(); err != nil {
		t.Fatal(err)
	}

	var got []Record
	err = j.Replay(func(seq uint64, r Record) error {
		if seq != uint64(len(got)) {
			t.Errorf("seq = %d, want %d", seq, len(got))
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d records, want 3", len(got))
	}
	if got[0].Kind != RecordOrder || got[0].Volume != 5 || got[0].Price != 1000 {
		t.Errorf("order record = %+v", got[0])
	}
	if got[1].Kind != RecordTrade || got[1].Seconds != 0.25 {
		t.Errorf("trade record = %+v", got[1])
	}
	if got[2].Kind != RecordLine || len(got[2].Fields) != 9 {
		t.Errorf("line record = %+v", got[2])
	}
}

package db

import "fmt"

// RecordID locates a single tuple on disk: the page it lives on and
// its slot index within that page's header bitmap.
type RecordID struct {
	PageID PageID
	Slot   int
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s,slot=%d)", r.PageID, r.Slot)
}

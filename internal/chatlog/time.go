package chatlog

import "time"

func unixMillisToRFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

package lastfm

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// calculateSignature generates the MD5 request signature required for
// all Last.fm API calls.
//
// Per the Last.fm signing scheme:
//  1. Sort parameter keys alphabetically
//  2. Concatenate key+value pairs (e.g., "keyAvalueAkeyBvalueB")
//  3. Append the API secret
//  4. Take the MD5 hash of the result
func calculateSignature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params[k])
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

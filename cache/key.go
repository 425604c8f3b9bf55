package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/trafficportal/linkshortener/utils"
)

const KeyPrefix = "screenshot_"

// Key derives the cache key for a capture of url with the given options. Option
// order does not matter and the key always has the same length.
func Key(url string, options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+options[k])
	}

	sum := md5.Sum([]byte(utils.NormalizeCacheURL(url) + "|" + strings.Join(pairs, "&")))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

package scholarship

import (
	"encoding/json"
	"fmt"

	redisutil "github.com/kthomas/go-redisutil"

	"github.com/edudao/scholarship/common"
)

// The composed read-model is cached for a bounded interval so rapid refreshes
// do not hammer the store; every successful mutation bumps the cache
// generation, which acts as the forced refresh bypassing the throttle once.

const viewsCacheKeyPrefix = "scholarship.views"
const viewsCacheGenerationKey = "scholarship.views.generation"

var viewsCacheEnabled bool

var (
	cacheGet       = redisutil.Get
	cacheSet       = redisutil.Set
	cacheIncrement = redisutil.Increment
)

// RequireViewsCache initializes the redis-backed read-model cache; without it
// every listing recomposes from the store
func RequireViewsCache() {
	redisutil.RequireRedis()
	viewsCacheEnabled = true
	common.Log.Debugf("initialized scholarship read-model cache; ttl: %s", common.ReadModelCacheTTL)
}

// viewsCacheKey resolves the key for the current cache generation. The read
// path captures the key once, before composing from the store, so a
// composition racing a generation bump writes to the superseded key instead
// of masking the invalidation.
func viewsCacheKey() string {
	generation := int64(0)
	if raw, err := cacheGet(viewsCacheGenerationKey); err == nil && raw != nil {
		fmt.Sscanf(*raw, "%d", &generation)
	}
	return fmt.Sprintf("%s.%d", viewsCacheKeyPrefix, generation)
}

func cachedViews(key string) ([]*View, bool) {
	raw, err := cacheGet(key)
	if err != nil || raw == nil {
		return nil, false
	}

	var views []*View
	if err := json.Unmarshal([]byte(*raw), &views); err != nil {
		common.Log.Warningf("failed to unmarshal cached scholarship views; %s", err.Error())
		return nil, false
	}
	return views, true
}

func cacheViews(key string, views []*View) {
	raw, err := json.Marshal(views)
	if err != nil {
		common.Log.Warningf("failed to marshal scholarship views for caching; %s", err.Error())
		return
	}

	ttl := common.ReadModelCacheTTL
	if err := cacheSet(key, string(raw), &ttl); err != nil {
		common.Log.Warningf("failed to cache scholarship views; %s", err.Error())
	}
}

// InvalidateViewsCache bumps the cache generation so the next listing
// recomposes from the store immediately
func InvalidateViewsCache() {
	if !viewsCacheEnabled {
		return
	}

	if _, err := cacheIncrement(viewsCacheGenerationKey); err != nil {
		common.Log.Warningf("failed to invalidate scholarship views cache; %s", err.Error())
	}
}

package notifications

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"workit/internal/middleware"
	"workit/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceOnlineSetKey  = "presence:online"
	defaultPresenceLastSeenKeyNS = "presence:seen:"
	defaultPresenceTTL           = 45 * time.Second
	defaultOfflineGrace          = 5 * time.Second
	defaultReaperInterval        = 60 * time.Second
)

// ConnectionManagerConfig controls Redis presence and cleanup behavior.
type ConnectionManagerConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
	OnUserOnline       func(userID uint)
	OnUserOffline      func(userID uint)
}

// ConnectionManager tracks online users from sockets and heartbeats, mirrors
// presence in Redis, and emits online/offline transitions. A user whose last
// socket closes stays online for a short grace window; a user whose heartbeat
// key lapses is expired by the reaper. Without Redis, heartbeats are kept in
// memory with the same TTL and the reaper expires them locally.
type ConnectionManager struct {
	rdb *redis.Client

	mu              sync.RWMutex
	localConnCounts map[uint]int
	offlineTimers   map[uint]*time.Timer
	offlineNotified map[uint]bool
	heartbeats      map[uint]time.Time

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	offlineGrace      time.Duration
	reaperInterval    time.Duration

	onUserOnline  func(userID uint)
	onUserOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnectionManager creates a manager and starts the reaper.
func NewConnectionManager(rdb *redis.Client, cfg ConnectionManagerConfig) *ConnectionManager {
	m := &ConnectionManager{
		rdb:               rdb,
		localConnCounts:   make(map[uint]int),
		offlineTimers:     make(map[uint]*time.Timer),
		offlineNotified:   make(map[uint]bool),
		heartbeats:        make(map[uint]time.Time),
		onlineSetKey:      defaultPresenceOnlineSetKey,
		lastSeenKeyPrefix: defaultPresenceLastSeenKeyNS,
		lastSeenTTL:       defaultPresenceTTL,
		offlineGrace:      defaultOfflineGrace,
		reaperInterval:    defaultReaperInterval,
		onUserOnline:      cfg.OnUserOnline,
		onUserOffline:     cfg.OnUserOffline,
		stopCh:            make(chan struct{}),
	}

	if cfg.OnlineSetKey != "" {
		m.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		m.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		m.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		m.offlineGrace = cfg.OfflineGracePeriod
	}
	if cfg.ReaperInterval > 0 {
		m.reaperInterval = cfg.ReaperInterval
	}

	if m.reaperInterval > 0 {
		go m.reaperLoop(m.reaperInterval)
	}

	return m
}

// SetCallbacks replaces the transition callbacks.
func (m *ConnectionManager) SetCallbacks(onOnline, onOffline func(userID uint)) {
	m.mu.Lock()
	m.onUserOnline = onOnline
	m.onUserOffline = onOffline
	m.mu.Unlock()
}

func (m *ConnectionManager) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.offlineGrace = d
	m.mu.Unlock()
}

// Stop halts the reaper and cancels pending offline timers.
func (m *ConnectionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.mu.Lock()
		for userID, timer := range m.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(m.offlineTimers, userID)
		}
		m.mu.Unlock()
	})
}

// Register counts a new socket for userID.
func (m *ConnectionManager) Register(ctx context.Context, userID uint) {
	wasOnline := m.IsOnline(ctx, userID)

	m.mu.Lock()
	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
		delete(m.offlineTimers, userID)
	}
	m.localConnCounts[userID]++
	m.mu.Unlock()

	m.Touch(ctx, userID)
	if !wasOnline {
		m.emitOnline(userID)
	}
}

// Heartbeat refreshes presence for a user that may have no socket open.
// It reports whether the call brought the user online.
func (m *ConnectionManager) Heartbeat(ctx context.Context, userID uint) bool {
	wasOnline := m.IsOnline(ctx, userID)

	m.mu.Lock()
	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
		delete(m.offlineTimers, userID)
	}
	if m.rdb == nil {
		m.heartbeats[userID] = time.Now().Add(m.lastSeenTTL)
	}
	m.mu.Unlock()

	m.Touch(ctx, userID)
	if !wasOnline {
		m.emitOnline(userID)
		return true
	}
	return false
}

// Touch refreshes the Redis presence entry for userID.
func (m *ConnectionManager) Touch(ctx context.Context, userID uint) {
	if m.rdb == nil {
		return
	}
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, m.onlineSetKey, strconv.FormatUint(uint64(userID), 10))
		pipe.SetEx(ctx, m.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), m.lastSeenTTL)
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "presence touch failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Unregister drops one socket for userID. The last socket starts the
// offline grace timer.
func (m *ConnectionManager) Unregister(ctx context.Context, userID uint) {
	m.mu.Lock()
	if n, ok := m.localConnCounts[userID]; ok {
		n--
		if n > 0 {
			m.localConnCounts[userID] = n
			m.mu.Unlock()
			return
		}
		delete(m.localConnCounts, userID)
	}

	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
	}
	m.offlineTimers[userID] = time.AfterFunc(m.offlineGrace, func() {
		m.finalizeOffline(context.Background(), userID)
	})
	m.mu.Unlock()
}

// Leave ends presence for a user that logged out. Sockets still open on this
// instance keep the user online.
func (m *ConnectionManager) Leave(ctx context.Context, userID uint) {
	m.mu.Lock()
	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
		delete(m.offlineTimers, userID)
	}
	delete(m.heartbeats, userID)
	hasLocal := m.localConnCounts[userID] > 0
	m.mu.Unlock()
	if hasLocal {
		return
	}

	if m.rdb != nil {
		uid := strconv.FormatUint(uint64(userID), 10)
		if err := m.rdb.Del(ctx, m.lastSeenKey(userID)).Err(); err != nil {
			middleware.Logger.WarnContext(ctx, "presence leave DEL failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
		_ = m.rdb.SRem(ctx, m.onlineSetKey, uid).Err()
	}
	m.emitOffline(userID)
}

// IsOnline reports whether the user has a local socket or a live heartbeat.
func (m *ConnectionManager) IsOnline(ctx context.Context, userID uint) bool {
	m.mu.RLock()
	if m.localConnCounts[userID] > 0 {
		m.mu.RUnlock()
		return true
	}
	alive := m.heartbeatAliveLocked(userID, time.Now())
	m.mu.RUnlock()

	if m.rdb == nil {
		return alive
	}

	exists, err := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// GetOnlineUserIDs returns online user IDs from Redis (with stale filtering),
// unioned with local connections, in ascending order.
func (m *ConnectionManager) GetOnlineUserIDs(ctx context.Context) []uint {
	seen := make(map[uint]struct{})
	for _, userID := range m.localUserIDs() {
		seen[userID] = struct{}{}
	}

	live, _, err := m.scanMembers(ctx)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "presence scan failed", slog.String("error", err.Error()))
	}
	for _, userID := range live {
		seen[userID] = struct{}{}
	}

	result := make([]uint, 0, len(seen))
	for userID := range seen {
		result = append(result, userID)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	observability.OnlineUsers.Set(float64(len(result)))
	return result
}

// scanMembers splits the online set into members whose heartbeat key is
// alive and raw members that are stale or malformed. The key checks run in
// one pipeline.
func (m *ConnectionManager) scanMembers(ctx context.Context) (live []uint, stale []string, err error) {
	if m.rdb == nil {
		return m.localHeartbeatIDs(), nil, nil
	}
	members, err := m.rdb.SMembers(ctx, m.onlineSetKey).Result()
	if err != nil || len(members) == 0 {
		return nil, nil, err
	}

	ids := make([]uint, len(members))
	checks := make([]*redis.IntCmd, len(members))
	_, err = m.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range members {
			userID, ok := parseUserID(raw)
			if !ok {
				continue
			}
			ids[i] = userID
			checks[i] = pipe.Exists(ctx, m.lastSeenKey(userID))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i, raw := range members {
		switch {
		case checks[i] == nil:
			stale = append(stale, raw)
		case checks[i].Val() > 0:
			live = append(live, ids[i])
		default:
			stale = append(stale, raw)
		}
	}
	return live, stale, nil
}

// reapOnce removes set members whose heartbeat key lapsed and reports
// which users it expired.
func (m *ConnectionManager) reapOnce(ctx context.Context) []uint {
	if m.rdb == nil {
		return m.reapHeartbeats(time.Now())
	}
	_, stale, err := m.scanMembers(ctx)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "presence reaper scan failed", slog.String("error", err.Error()))
		return nil
	}

	var expired []uint
	for _, raw := range stale {
		_ = m.rdb.SRem(ctx, m.onlineSetKey, raw).Err()
		userID, ok := parseUserID(raw)
		if !ok {
			continue
		}

		m.mu.RLock()
		hasLocal := m.localConnCounts[userID] > 0
		m.mu.RUnlock()
		if hasLocal {
			continue
		}
		expired = append(expired, userID)
		observability.PresenceExpired.Inc()
		m.emitOffline(userID)
	}
	return expired
}

func (m *ConnectionManager) reaperLoop(interval time.Duration) {
	ctx := context.Background()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if expired := m.reapOnce(ctx); len(expired) > 0 {
				middleware.Logger.Info("presence reaper expired users", slog.Any("user_ids", expired))
			}
		}
	}
}

func (m *ConnectionManager) finalizeOffline(ctx context.Context, userID uint) {
	m.mu.Lock()
	delete(m.offlineTimers, userID)
	if m.localConnCounts[userID] > 0 {
		m.mu.Unlock()
		return
	}
	alive := m.heartbeatAliveLocked(userID, time.Now())
	m.mu.Unlock()
	if alive {
		return
	}

	if m.rdb != nil {
		exists, err := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
		if err == nil && exists > 0 {
			// Heartbeats keep the user online after the socket closes; the
			// reaper handles them once the key lapses.
			return
		}
		_ = m.rdb.SRem(ctx, m.onlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}

	m.emitOffline(userID)
}

func (m *ConnectionManager) emitOnline(userID uint) {
	m.mu.Lock()
	m.offlineNotified[userID] = false
	cb := m.onUserOnline
	m.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (m *ConnectionManager) emitOffline(userID uint) {
	m.mu.Lock()
	if m.offlineNotified[userID] {
		m.mu.Unlock()
		return
	}
	m.offlineNotified[userID] = true
	cb := m.onUserOffline
	m.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (m *ConnectionManager) localUserIDs() []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint, 0, len(m.localConnCounts))
	for userID, count := range m.localConnCounts {
		if count > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (m *ConnectionManager) heartbeatAliveLocked(userID uint, now time.Time) bool {
	expiry, ok := m.heartbeats[userID]
	return ok && now.Before(expiry)
}

func (m *ConnectionManager) localHeartbeatIDs() []uint {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint, 0, len(m.heartbeats))
	for userID := range m.heartbeats {
		if m.heartbeatAliveLocked(userID, now) {
			ids = append(ids, userID)
		}
	}
	return ids
}

// reapHeartbeats drops in-memory heartbeats that lapsed before now.
func (m *ConnectionManager) reapHeartbeats(now time.Time) []uint {
	var expired []uint
	m.mu.Lock()
	for userID := range m.heartbeats {
		if m.heartbeatAliveLocked(userID, now) {
			continue
		}
		delete(m.heartbeats, userID)
		if m.localConnCounts[userID] == 0 {
			expired = append(expired, userID)
		}
	}
	m.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, userID := range expired {
		observability.PresenceExpired.Inc()
		m.emitOffline(userID)
	}
	return expired
}

func (m *ConnectionManager) lastSeenKey(userID uint) string {
	return m.lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserID(raw string) (uint, bool) {
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

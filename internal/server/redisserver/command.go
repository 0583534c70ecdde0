package redisserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/infra/buildinfo"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
)

// defaultDatabase is the store data commands address before any SELECT.
const defaultDatabase = "db0"

// databaseName returns the store name for a Redis database index.
func databaseName(index int) string {
	return "db" + strconv.Itoa(index)
}

// isDatabaseName reports whether a store name has the db<index> shape
// SELECT addresses.
func isDatabaseName(name string) bool {
	if len(name) < 3 || !strings.HasPrefix(name, "db") {
		return false
	}
	for _, r := range name[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// formatRedisError converts an error to a Redis error string.
// For DomainErrors, returns "ERR <code> <message>".
// For other errors, returns "ERR <message>".
func formatRedisError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return "ERR " + de.Code + " " + de.Message
	}
	return "ERR " + err.Error()
}

// rateLimiter keeps one token-bucket limiter per client IP, created
// lazily. The per-second rate doubles as the burst size, mirroring the
// per-key limiters in the service layer. A zero rate disables limiting.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rl.limit, int(rl.limit))
		rl.limiters[ip] = lim
	}
	rl.mu.Unlock()

	return lim.Allow()
}

// CommandHandler handles Redis commands.
type CommandHandler struct {
	storeSvc    *service.StoreService
	authSvc     *service.AuthService
	srv         *Server
	logger      logger.Logger
	metrics     *metric.Registry
	rateLimiter *rateLimiter
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(storeSvc *service.StoreService, authSvc *service.AuthService, srv *Server, log logger.Logger, metrics *metric.Registry) *CommandHandler {
	if log == nil {
		log = logger.Default()
	}

	var rl *rateLimiter
	if srv != nil && srv.cfg != nil && srv.cfg.RateLimit > 0 {
		rl = newRateLimiter(srv.cfg.RateLimit)
	}

	return &CommandHandler{
		storeSvc:    storeSvc,
		authSvc:     authSvc,
		srv:         srv,
		logger:      log,
		metrics:     metrics,
		rateLimiter: rl,
	}
}

// Handle handles a Redis command (RESP array of bulk strings).
func (h *CommandHandler) Handle(conn *Conn, args [][]byte) {
	if len(args) == 0 {
		_ = WriteError(conn.bw, "ERR no command")
		return
	}

	cmdName := normalizeCommandName(args[0])

	// Connection-level commands (do not require authentication).
	switch cmdName {
	case "PING":
		h.countCommand(cmdName)
		h.handlePing(conn, args)
		return
	case "AUTH":
		h.countCommand(cmdName)
		h.handleAuth(conn, args)
		return
	case "QUIT":
		h.countCommand(cmdName)
		h.handleQuit(conn, args)
		return
	case "COMMAND":
		h.countCommand(cmdName)
		h.handleCommand(conn, args)
		return
	}

	// All other commands require authentication.
	state := conn.GetState()
	if state == nil || !state.Authenticated {
		_ = WriteError(conn.bw, "NOAUTH Authentication required")
		return
	}

	// Rate limiting check (per-IP).
	if h.rateLimiter != nil {
		if !h.rateLimiter.allow(remoteIP(conn)) {
			if h.metrics != nil {
				h.metrics.RateLimited.Inc()
			}
			_ = WriteError(conn.bw, "ERR JK-SYS-4290 too many requests")
			return
		}
	}

	perm, known := commandPermission(cmdName)
	if !known {
		_ = WriteError(conn.bw, "ERR unknown command '"+cmdName+"'")
		return
	}
	if !h.checkPermission(state, perm) {
		_ = WriteError(conn.bw, "ERR JK-AUTH-4030 permission denied for command '"+cmdName+"'")
		return
	}

	h.countCommand(cmdName)

	switch cmdName {
	case "SELECT":
		h.handleSelect(conn, args)
	case "GET":
		h.handleGet(conn, args)
	case "SET":
		h.handleSet(conn, args)
	case "DEL":
		h.handleDel(conn, args)
	case "EXISTS":
		h.handleExists(conn, args)
	case "KEYS":
		h.handleKeys(conn, args)
	case "DBSIZE":
		h.handleDBSize(conn, args)
	case "FLUSHDB":
		h.handleFlushDB(conn, args)
	case "SAVE":
		h.handleSave(conn, args)
	case "BGSAVE":
		h.handleBGSave(conn, args)
	case "INFO":
		h.handleInfo(conn, args)
	}
}

// commandPermission maps a command to the permission it requires.
func commandPermission(cmdName string) (domain.Permission, bool) {
	switch cmdName {
	case "SELECT", "GET", "EXISTS", "KEYS", "DBSIZE", "INFO":
		return domain.PermStoreRead, true
	case "SET", "DEL", "SAVE":
		return domain.PermStoreWrite, true
	case "FLUSHDB":
		return domain.PermStoreFlush, true
	case "BGSAVE":
		return domain.PermSnapshotCreate, true
	default:
		return "", false
	}
}

func (h *CommandHandler) checkPermission(state *ConnState, perm domain.Permission) bool {
	if state == nil || state.APIKey == nil {
		return false
	}
	return domain.HasPermission(domain.Role(state.APIKey.Role), perm)
}

func (h *CommandHandler) countCommand(name string) {
	if h.metrics != nil {
		h.metrics.RESPCommands.WithLabelValues(name).Inc()
	}
}

// remoteIP extracts the client IP without the port.
func remoteIP(conn *Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (h *CommandHandler) handlePing(conn *Conn, args [][]byte) {
	if len(args) > 1 {
		_ = WriteBulk(conn.bw, args[1])
		return
	}
	_ = WriteSimpleString(conn.bw, "PONG")
}

// handleAuth handles the AUTH command.
// Supports:
//   - AUTH <key_id> <key_secret>
//   - AUTH <key_id>:<key_secret>
func (h *CommandHandler) handleAuth(conn *Conn, args [][]byte) {
	var keyID, keySecret string

	switch len(args) {
	case 2:
		parts := strings.SplitN(string(args[1]), ":", 2)
		if len(parts) != 2 {
			_ = WriteError(conn.bw, "ERR invalid AUTH format, expected 'key_id:key_secret' or 'key_id key_secret'")
			return
		}
		keyID, keySecret = parts[0], parts[1]
	case 3:
		keyID, keySecret = string(args[1]), string(args[2])
	default:
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'AUTH' command")
		return
	}

	ctx := context.Background()
	resp, err := h.authSvc.ValidateAPIKey(ctx, &service.ValidateAPIKeyRequest{
		KeyID:     keyID,
		KeySecret: keySecret,
		ClientIP:  remoteIP(conn),
	})
	if err != nil || !resp.Valid {
		_ = WriteError(conn.bw, "ERR JK-AUTH-4011 invalid credentials")
		return
	}

	st := conn.GetState()
	st.Authenticated = true
	st.APIKey = &service.APIKeyInfo{
		KeyID:   resp.APIKey.KeyID,
		Name:    resp.APIKey.Name,
		Role:    string(resp.APIKey.Role),
		Enabled: resp.APIKey.IsActive(),
	}
	conn.SetState(*st)

	_ = WriteSimpleString(conn.bw, "OK")
}

func (h *CommandHandler) handleQuit(conn *Conn, _ [][]byte) {
	_ = WriteSimpleString(conn.bw, "OK")
	_ = conn.bw.Flush()
	_ = conn.Close()
}

// SELECT <index>
//
// Database indexes map to attached stores named db0, db1, and so on.
// Selecting an index whose store is not attached fails the way Redis
// fails for an out-of-range database.
func (h *CommandHandler) handleSelect(conn *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'SELECT' command")
		return
	}

	index, err := strconv.Atoi(string(args[1]))
	if err != nil || index < 0 {
		_ = WriteError(conn.bw, "ERR value is not an integer or out of range")
		return
	}

	name := databaseName(index)
	if _, err := h.storeSvc.KeyCount(context.Background(), name); err != nil {
		_ = WriteError(conn.bw, "ERR DB index is out of range")
		return
	}

	st := conn.GetState()
	st.Database = name
	conn.SetState(*st)
	_ = WriteSimpleString(conn.bw, "OK")
}

// GET <key>
func (h *CommandHandler) handleGet(conn *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'GET' command")
		return
	}

	ctx := context.Background()
	resp, err := h.storeSvc.Get(ctx, &service.GetValueRequest{
		Store: conn.Database(),
		Key:   string(args[1]),
	})
	if err != nil {
		if domain.IsDomainError(err, "JK-STOR-4041") {
			_ = WriteNullBulk(conn.bw)
			return
		}
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = writeValue(conn.bw, resp.Value)
}

// SET <key> <value>
//
// The value is decoded as JSON when possible so objects, arrays,
// numbers, booleans and null keep their types; anything else is stored
// as a plain string.
func (h *CommandHandler) handleSet(conn *Conn, args [][]byte) {
	if len(args) < 3 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'SET' command")
		return
	}
	if len(args) > 3 {
		_ = WriteError(conn.bw, "ERR syntax error")
		return
	}

	ctx := context.Background()
	_, err := h.storeSvc.Set(ctx, &service.SetValueRequest{
		Store: conn.Database(),
		Key:   string(args[1]),
		Value: parseValue(args[2]),
	})
	if err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = WriteSimpleString(conn.bw, "OK")
}

// DEL <key> [key ...]
func (h *CommandHandler) handleDel(conn *Conn, args [][]byte) {
	if len(args) < 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'DEL' command")
		return
	}

	ctx := context.Background()
	db := conn.Database()
	deleted := 0
	for i := 1; i < len(args); i++ {
		resp, err := h.storeSvc.Delete(ctx, &service.DeleteValueRequest{Store: db, Key: string(args[i])})
		if err != nil {
			_ = WriteError(conn.bw, formatRedisError(err))
			return
		}
		if resp.Deleted {
			deleted++
		}
	}

	_ = WriteInteger(conn.bw, int64(deleted))
}

// EXISTS <key> [key ...]
//
// Repeated keys are counted each time they appear, matching Redis.
func (h *CommandHandler) handleExists(conn *Conn, args [][]byte) {
	if len(args) < 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'EXISTS' command")
		return
	}

	ctx := context.Background()
	db := conn.Database()
	count := 0
	for i := 1; i < len(args); i++ {
		ok, err := h.storeSvc.HasValue(ctx, db, string(args[i]))
		if err != nil {
			_ = WriteError(conn.bw, formatRedisError(err))
			return
		}
		if ok {
			count++
		}
	}

	_ = WriteInteger(conn.bw, int64(count))
}

// KEYS <pattern>
func (h *CommandHandler) handleKeys(conn *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'KEYS' command")
		return
	}

	pattern := string(args[1])
	keys, err := h.storeSvc.Keys(context.Background(), conn.Database())
	if err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	var matched []string
	for _, k := range keys {
		if matchGlob(pattern, k) {
			matched = append(matched, k)
		}
	}

	_ = WriteArrayHeader(conn.bw, len(matched))
	for _, k := range matched {
		_ = WriteBulkString(conn.bw, k)
	}
}

// DBSIZE
func (h *CommandHandler) handleDBSize(conn *Conn, args [][]byte) {
	if len(args) != 1 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'DBSIZE' command")
		return
	}

	count, err := h.storeSvc.KeyCount(context.Background(), conn.Database())
	if err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = WriteInteger(conn.bw, int64(count))
}

// FLUSHDB [ASYNC|SYNC]
//
// The flush always runs synchronously; the modifier is accepted for
// client compatibility.
func (h *CommandHandler) handleFlushDB(conn *Conn, args [][]byte) {
	switch len(args) {
	case 1:
	case 2:
		mod := normalizeCommandName(args[1])
		if mod != "ASYNC" && mod != "SYNC" {
			_ = WriteError(conn.bw, "ERR syntax error")
			return
		}
	default:
		_ = WriteError(conn.bw, "ERR syntax error")
		return
	}

	_, err := h.storeSvc.Flush(context.Background(), &service.FlushStoreRequest{Store: conn.Database()})
	if err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = WriteSimpleString(conn.bw, "OK")
}

// SAVE
//
// Rewrites the database's backing file from the live state.
func (h *CommandHandler) handleSave(conn *Conn, args [][]byte) {
	if len(args) != 1 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'SAVE' command")
		return
	}

	if err := h.storeSvc.Persist(context.Background(), conn.Database()); err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = WriteSimpleString(conn.bw, "OK")
}

// BGSAVE [SCHEDULE]
//
// Writes a snapshot of the database into its snapshot policy directory.
func (h *CommandHandler) handleBGSave(conn *Conn, args [][]byte) {
	switch len(args) {
	case 1:
	case 2:
		if normalizeCommandName(args[1]) != "SCHEDULE" {
			_ = WriteError(conn.bw, "ERR syntax error")
			return
		}
	default:
		_ = WriteError(conn.bw, "ERR syntax error")
		return
	}

	_, err := h.storeSvc.CreateSnapshot(context.Background(), &service.CreateSnapshotRequest{Store: conn.Database()})
	if err != nil {
		_ = WriteError(conn.bw, formatRedisError(err))
		return
	}

	_ = WriteSimpleString(conn.bw, "Background saving started")
}

// INFO [section]
func (h *CommandHandler) handleInfo(conn *Conn, args [][]byte) {
	if len(args) > 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'INFO' command")
		return
	}

	section := ""
	if len(args) == 2 {
		section = strings.ToLower(string(args[1]))
	}

	_ = WriteBulkString(conn.bw, h.infoText(section))
}

// infoText renders the INFO sections in the Redis key:value format.
// Unknown sections render empty, matching Redis.
func (h *CommandHandler) infoText(section string) string {
	var b strings.Builder

	if section == "" || section == "server" {
		info := buildinfo.Get()
		uptime := int64(0)
		if h.srv != nil {
			uptime = int64(time.Since(h.srv.started).Seconds())
		}
		b.WriteString("# Server\r\n")
		b.WriteString("jsonkeep_version:" + info.Version + "\r\n")
		b.WriteString("go_version:" + info.GoVersion + "\r\n")
		b.WriteString("uptime_in_seconds:" + strconv.FormatInt(uptime, 10) + "\r\n")
	}

	if section == "" || section == "clients" {
		clients := int64(0)
		if h.srv != nil {
			clients = h.srv.connections.Load()
		}
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString("# Clients\r\n")
		b.WriteString("connected_clients:" + strconv.FormatInt(clients, 10) + "\r\n")
	}

	if section == "" || section == "stores" || section == "keyspace" {
		ctx := context.Background()
		resp, err := h.storeSvc.ListStores(ctx)
		if err != nil {
			return b.String()
		}

		counts := make(map[string]int, len(resp.Items))
		for _, st := range resp.Items {
			if n, err := h.storeSvc.KeyCount(ctx, st.Name); err == nil {
				counts[st.Name] = n
			}
		}

		if section == "" || section == "stores" {
			if b.Len() > 0 {
				b.WriteString("\r\n")
			}
			b.WriteString("# Stores\r\n")
			b.WriteString("attached_stores:" + strconv.Itoa(resp.Total) + "\r\n")
			for _, st := range resp.Items {
				b.WriteString("store_" + st.Name + ":keys=" + strconv.Itoa(counts[st.Name]) + "\r\n")
			}
		}

		if section == "" || section == "keyspace" {
			if b.Len() > 0 {
				b.WriteString("\r\n")
			}
			b.WriteString("# Keyspace\r\n")
			for _, st := range resp.Items {
				if isDatabaseName(st.Name) {
					b.WriteString(st.Name + ":keys=" + strconv.Itoa(counts[st.Name]) + "\r\n")
				}
			}
		}
	}

	return b.String()
}

// commandTable lists the supported commands with their Redis-style
// arity and key positions. Negative arity means "at least".
var commandTable = []struct {
	name                    string
	arity                   int
	firstKey, lastKey, step int
}{
	{"PING", -1, 0, 0, 0},
	{"AUTH", -2, 0, 0, 0},
	{"QUIT", 1, 0, 0, 0},
	{"COMMAND", -1, 0, 0, 0},
	{"SELECT", 2, 0, 0, 0},
	{"GET", 2, 1, 1, 1},
	{"SET", 3, 1, 1, 1},
	{"DEL", -2, 1, -1, 1},
	{"EXISTS", -2, 1, -1, 1},
	{"KEYS", 2, 0, 0, 0},
	{"DBSIZE", 1, 0, 0, 0},
	{"FLUSHDB", -1, 0, 0, 0},
	{"SAVE", 1, 0, 0, 0},
	{"BGSAVE", -1, 0, 0, 0},
	{"INFO", -1, 0, 0, 0},
}

// COMMAND [COUNT|LIST|subcommand]
//
// Replies with the command table. Unsupported subcommands get an empty
// array so probing clients can proceed.
func (h *CommandHandler) handleCommand(conn *Conn, args [][]byte) {
	if len(args) >= 2 {
		switch normalizeCommandName(args[1]) {
		case "COUNT":
			_ = WriteInteger(conn.bw, int64(len(commandTable)))
		case "LIST":
			_ = WriteArrayHeader(conn.bw, len(commandTable))
			for _, c := range commandTable {
				_ = WriteBulkString(conn.bw, strings.ToLower(c.name))
			}
		default:
			_ = WriteArrayHeader(conn.bw, 0)
		}
		return
	}

	_ = WriteArrayHeader(conn.bw, len(commandTable))
	for _, c := range commandTable {
		_ = WriteArrayHeader(conn.bw, 6)
		_ = WriteBulkString(conn.bw, strings.ToLower(c.name))
		_ = WriteInteger(conn.bw, int64(c.arity))
		_ = WriteArrayHeader(conn.bw, 0)
		_ = WriteInteger(conn.bw, int64(c.firstKey))
		_ = WriteInteger(conn.bw, int64(c.lastKey))
		_ = WriteInteger(conn.bw, int64(c.step))
	}
}

// parseValue decodes a SET payload. Valid JSON keeps its type; anything
// else is treated as a raw string value.
func parseValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

// writeValue writes a stored value as a bulk string. Strings go out as
// their raw bytes; everything else is JSON encoded.
func writeValue(w *bufio.Writer, v any) error {
	if s, ok := v.(string); ok {
		return WriteBulkString(w, s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return WriteError(w, "ERR failed to encode value")
	}
	return WriteBulk(w, data)
}

// matchGlob matches s against a KEYS pattern where * matches any run
// of characters. The other Redis metacharacters (?, [...]) are not
// supported. Literal segments between wildcards are matched left to
// right without backtracking.
func matchGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}

package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"energy-exchange/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Pinger is anything health can probe. A nil Pinger is reported as disabled.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// CollectResult is the body of /health/json.
type CollectResult struct {
	Status       string               `json:"status"`
	Mode         string               `json:"mode"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB  int `json:"allocMb"`
	HeapInMB int `json:"heapInUseMb"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// Sources are the dependencies CollectHealth probes. Nil fields are reported as disabled.
type Sources struct {
	Redis  *redis.Client
	DB     Pinger
	Ledger Pinger
	Mode   string
}

// CollectHealth pings every configured dependency and reads traffic counters from Redis.
func CollectHealth(ctx context.Context, src Sources) CollectResult {
	result := CollectResult{
		Mode:         src.Mode,
		Dependencies: make(map[string]DepStatus),
		Traffic:      TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"},
	}
	healthy := true

	result.Dependencies["database"] = probe(ctx, src.DB, &healthy)
	result.Dependencies["ledger"] = probe(ctx, src.Ledger, &healthy)

	startTimeMs := time.Now().UnixMilli()
	if src.Redis == nil {
		result.Dependencies["redis"] = DepStatus{Status: "disabled"}
	} else {
		result.Dependencies["redis"] = probe(ctx, PingerFunc(func(ctx context.Context) error {
			return src.Redis.Ping(ctx).Err()
		}), &healthy)
		if result.Dependencies["redis"].Status == "connected" {
			startTimeMs = readTraffic(ctx, src.Redis, &result.Traffic, startTimeMs)
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapInMB: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	if healthy {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

func probe(ctx context.Context, p Pinger, healthy *bool) DepStatus {
	if p == nil {
		return DepStatus{Status: "disabled"}
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		*healthy = false
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

// readTraffic fills stats from the HealthMarker counters and returns the recorded start time.
func readTraffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, startTimeMs int64) int64 {
	totalReq, _ := rdb.Get(ctx, middleware.KeyReqTotal).Result()
	totalErr, _ := rdb.Get(ctx, middleware.KeyReqErrors).Result()
	totalTime, _ := rdb.Get(ctx, middleware.KeyResTime).Result()
	resCount, _ := rdb.Get(ctx, middleware.KeyResCount).Result()
	startTimeStr, _ := rdb.Get(ctx, middleware.KeyStartTime).Result()
	lastReqStr, _ := rdb.Get(ctx, middleware.KeyLastReq).Result()

	if startTimeStr != "" {
		if t, err := strconv.ParseInt(startTimeStr, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(totalReq)
	stats.FailedCount, _ = strconv.Atoi(totalErr)
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(totalTime, 64)
	countSum, _ := strconv.Atoi(resCount)
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if lastReqStr != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}

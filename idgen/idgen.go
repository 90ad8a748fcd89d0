// Package idgen 生成计算批次号与请求号.
// 底层可选 Snowflake 或 Sonyflake，由 [snowflake] 配置段决定.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sony/sonyflake"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/retry"
)

var (
	ErrUnsupportedType  = errors.New("unsupported id generator type")
	ErrParseTime        = errors.New("invalid start_time, want YYYY-MM-DD")
	ErrInvalidMachineID = errors.New("machine id out of range")
)

const startTimeLayout = "2006-01-02"

// Generator 产生单调递增的唯一 ID.
type Generator interface {
	NextID() (uint64, error)
}

type snowflakeGen struct {
	node *snowflake.Node
}

func (g snowflakeGen) NextID() (uint64, error) {
	return uint64(g.node.Generate().Int64()), nil
}

// sonyflakeGen 时钟回拨或单 10ms 序号耗尽时 NextID 会失败，按短退避重试.
type sonyflakeGen struct {
	sf     *sonyflake.Sonyflake
	policy retry.Policy
}

func (g sonyflakeGen) NextID() (uint64, error) {
	var id uint64
	err := retry.Do(context.Background(), g.policy, func(context.Context) error {
		var err error
		id, err = g.sf.NextID()
		return err
	})
	return id, err
}

func parseStartTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(startTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrParseTime, err)
	}
	return t, nil
}

// NewGenerator 按配置创建生成器，Type 为空时使用 Snowflake.
func NewGenerator(cfg config.SnowflakeConfig) (Generator, error) {
	switch cfg.Type {
	case "", "snowflake":
		return newSnowflake(cfg)
	case "sonyflake":
		return newSonyflake(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}

// newSnowflake 注意 snowflake.Epoch 是包级变量，进程内只应配置一次.
func newSnowflake(cfg config.SnowflakeConfig) (Generator, error) {
	epoch, err := parseStartTime(cfg.StartTime, time.UnixMilli(snowflake.Epoch))
	if err != nil {
		return nil, err
	}
	snowflake.Epoch = epoch.UnixMilli()

	node, err := snowflake.NewNode(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMachineID, err)
	}
	slog.Info("id generator initialized", "type", "snowflake", "machine_id", cfg.MachineID)
	return snowflakeGen{node: node}, nil
}

func newSonyflake(cfg config.SnowflakeConfig) (Generator, error) {
	start, err := parseStartTime(cfg.StartTime, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	if cfg.MachineID < 0 || cfg.MachineID > 0xFFFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMachineID, cfg.MachineID)
	}
	machineID := uint16(cfg.MachineID)

	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: start,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if err != nil {
		return nil, err
	}
	slog.Info("id generator initialized", "type", "sonyflake", "machine_id", cfg.MachineID)
	return sonyflakeGen{
		sf:     sf,
		policy: retry.Policy{Attempts: 3, Initial: 10 * time.Millisecond, Multiplier: 2},
	}, nil
}

var (
	mu        sync.RWMutex
	generator Generator
)

// Init 替换全局生成器.
func Init(cfg config.SnowflakeConfig) error {
	g, err := NewGenerator(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	generator = g
	mu.Unlock()
	return nil
}

func current() Generator {
	mu.RLock()
	g := generator
	mu.RUnlock()
	if g != nil {
		return g
	}

	mu.Lock()
	defer mu.Unlock()
	if generator == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		generator = snowflakeGen{node: node}
	}
	return generator
}

// next 生成失败时退化为纳秒时间戳，保证调用方总能拿到非空 ID.
func next() uint64 {
	id, err := current().NextID()
	if err != nil {
		slog.Error("id generation failed, falling back to clock", "error", err)
		return uint64(time.Now().UnixNano())
	}
	return id
}

// GenRunID 生成计算批次号，形如 R1234567890.
func GenRunID() string {
	return "R" + strconv.FormatUint(next(), 10)
}

// GenRequestID 生成请求号，形如 Q1234567890.
func GenRequestID() string {
	return "Q" + strconv.FormatUint(next(), 10)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"

	"courserush/course"
)

// MaxBallotSize 每次投票最多提供的选项数
const MaxBallotSize = 3

// ShopItem 商店条目
type ShopItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cost  int64  `json:"cost"`
	Color string `json:"color"`
}

// Title 称号阈值：胜场数 >= MinWins 即可获得
type Title struct {
	MinWins int64  `json:"min_wins"`
	Name    string `json:"name"`
}

// Round 回合节奏与奖励，可通过 /admin/config 热更新
type Round struct {
	LobbySeconds   int   `json:"lobby_seconds"`
	VotingSeconds  int   `json:"voting_seconds"`
	RunSeconds     int   `json:"run_seconds"`
	ResultsSeconds int   `json:"results_seconds"`
	BaseReward     int64 `json:"base_reward"`
	FirstBonus     int64 `json:"first_bonus"`
	DailyBonus     int64 `json:"daily_bonus"`
	BallotSize     int   `json:"ballot_size"`
}

// Config 进程级配置
type Config struct {
	Addr        string `json:"addr"`
	LogFile     string `json:"log_file"`
	LogLevel    string `json:"log_level"`
	RedisURL    string `json:"redis_url"`
	DatabaseURL string `json:"database_url"`
	Seed        int64  `json:"seed"`

	Round       Round      `json:"round"`
	CourseTypes []string   `json:"course_types"`
	Shop        []ShopItem `json:"shop"`
	Titles      []Title    `json:"titles"`
}

// Default 返回内置默认值
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogFile:  "app.log",
		LogLevel: "debug",
		Round: Round{
			LobbySeconds:   12,
			VotingSeconds:  8,
			RunSeconds:     120,
			ResultsSeconds: 6,
			BaseReward:     10,
			FirstBonus:     15,
			DailyBonus:     50,
			BallotSize:     3,
		},
		CourseTypes: []string{
			"Classic", "Planks", "Sweeper", "Pillars", "Shrink", "Hammers",
			"Conveyor", "Wind", "Spinner", "PushWall", "Cannon", "Maze",
		},
		Shop: []ShopItem{
			{ID: "trail_red", Name: "Red Trail", Cost: 100, Color: "#ff4040"},
			{ID: "trail_blue", Name: "Blue Trail", Cost: 100, Color: "#4080ff"},
			{ID: "aura_green", Name: "Green Aura", Cost: 250, Color: "#40ff80"},
			{ID: "crown_gold", Name: "Golden Crown", Cost: 500, Color: "#ffd700"},
		},
		Titles: []Title{
			{MinWins: 100, Name: "Legend"},
			{MinWins: 50, Name: "Champion"},
			{MinWins: 20, Name: "Veteran"},
			{MinWins: 5, Name: "Runner"},
			{MinWins: 0, Name: "Rookie"},
		},
	}
}

// Load 按顺序叠加：默认值 → .env → JSON 文件（可选）→ 环境变量
func Load(path string) (Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("COURSERUSH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	secs := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("COURSERUSH_ADDR", &cfg.Addr)
	str("COURSERUSH_LOG_FILE", &cfg.LogFile)
	str("COURSERUSH_LOG_LEVEL", &cfg.LogLevel)
	str("REDIS_URL", &cfg.RedisURL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	num("COURSERUSH_SEED", &cfg.Seed)

	secs("COURSERUSH_LOBBY_SECONDS", &cfg.Round.LobbySeconds)
	secs("COURSERUSH_VOTING_SECONDS", &cfg.Round.VotingSeconds)
	secs("COURSERUSH_RUN_SECONDS", &cfg.Round.RunSeconds)
	secs("COURSERUSH_RESULTS_SECONDS", &cfg.Round.ResultsSeconds)
	num("COURSERUSH_BASE_REWARD", &cfg.Round.BaseReward)
	num("COURSERUSH_FIRST_BONUS", &cfg.Round.FirstBonus)
	num("COURSERUSH_DAILY_BONUS", &cfg.Round.DailyBonus)
}

// Validate 校验配置；空课程目录是允许的（大厅会原地等待）
func (c Config) Validate() error {
	if err := c.Round.Validate(); err != nil {
		return err
	}
	if err := ValidateCatalog(c.CourseTypes); err != nil {
		return err
	}
	items := make(map[string]bool, len(c.Shop))
	for _, it := range c.Shop {
		if it.ID == "" || it.Cost < 0 {
			return fmt.Errorf("invalid shop item %q", it.ID)
		}
		if items[it.ID] {
			return fmt.Errorf("duplicate shop item %q", it.ID)
		}
		items[it.ID] = true
	}
	if !sort.SliceIsSorted(c.Titles, func(i, j int) bool { return c.Titles[i].MinWins > c.Titles[j].MinWins }) {
		return errors.New("titles must be sorted by min_wins descending")
	}
	return nil
}

// ValidateCatalog 课程名须非空、不重复且有对应的构建器
func ValidateCatalog(types []string) error {
	seen := make(map[string]bool, len(types))
	for _, name := range types {
		if name == "" {
			return errors.New("course type name must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate course type %q", name)
		}
		if !course.Known(name) {
			return fmt.Errorf("unknown course type %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Validate 校验回合参数
func (r Round) Validate() error {
	if r.LobbySeconds < 0 || r.VotingSeconds < 0 || r.RunSeconds < 0 || r.ResultsSeconds < 0 {
		return errors.New("round durations must not be negative")
	}
	if r.BaseReward < 0 || r.FirstBonus < 0 || r.DailyBonus < 0 {
		return errors.New("rewards must not be negative")
	}
	if r.BallotSize < 1 || r.BallotSize > MaxBallotSize {
		return fmt.Errorf("ballot size must be between 1 and %d", MaxBallotSize)
	}
	return nil
}

// TitleFor 返回满足阈值的最高称号
func (c Config) TitleFor(wins int64) string {
	for _, t := range c.Titles {
		if wins >= t.MinWins {
			return t.Name
		}
	}
	return ""
}

// Item 按 ID 查找商店条目
func (c Config) Item(id string) (ShopItem, bool) {
	for _, it := range c.Shop {
		if it.ID == id {
			return it, true
		}
	}
	return ShopItem{}, false
}

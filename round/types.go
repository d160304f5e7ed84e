package round

import "courserush/course"

// Status 回合状态广播
type Status struct {
	Phase        string   `json:"phase"`
	Remaining    int      `json:"remaining"`
	Round        int64    `json:"round"`
	Course       string   `json:"course,omitempty"`
	Ballot       []string `json:"ballot,omitempty"`
	Finishers    []string `json:"finishers"`
	Participants int      `json:"participants"`
}

// VoteUpdate 投票选项与实时票数
type VoteUpdate struct {
	Options   []string       `json:"options"`
	Tally     map[string]int `json:"tally"`
	Remaining int            `json:"remaining"`
}

// FinishNotice 单次完成公告
type FinishNotice struct {
	ID     string `json:"id"`
	Place  int    `json:"place"`
	Reward int64  `json:"reward"`
}

// LeaderboardRow 排行榜行
type LeaderboardRow struct {
	Rank  int    `json:"rank"`
	ID    string `json:"id"`
	Total int64  `json:"total"`
	Title string `json:"title"`
}

// InventoryView 查询背包的应答
type InventoryView struct {
	Items    []string `json:"items"`
	Equipped string   `json:"equipped,omitempty"`
	Balance  int64    `json:"balance"`
}

// CourseSnapshot 构建完成后发送的静态课程数据
type CourseSnapshot struct {
	Type     string           `json:"type"`
	Start    course.Pose      `json:"start"`
	Elements []course.State   `json:"elements"`
	Sections []course.Section `json:"sections"`
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courserush/config"
	"courserush/logger"
)

// roundPatch 热更新载荷：仅覆盖出现的字段
type roundPatch struct {
	LobbySeconds   *int     `json:"lobby_seconds,omitempty"`
	VotingSeconds  *int     `json:"voting_seconds,omitempty"`
	RunSeconds     *int     `json:"run_seconds,omitempty"`
	ResultsSeconds *int     `json:"results_seconds,omitempty"`
	BaseReward     *int64   `json:"base_reward,omitempty"`
	FirstBonus     *int64   `json:"first_bonus,omitempty"`
	DailyBonus     *int64   `json:"daily_bonus,omitempty"`
	BallotSize     *int     `json:"ballot_size,omitempty"`
	CourseTypes    []string `json:"course_types,omitempty"`
}

// getConfig GET /admin/config 返回当前回合配置与课程目录
func (s *Server) getConfig(c *gin.Context) {
	cfg := s.game.Config()
	r := cfg.Round
	c.JSON(http.StatusOK, roundPatch{
		LobbySeconds:   &r.LobbySeconds,
		VotingSeconds:  &r.VotingSeconds,
		RunSeconds:     &r.RunSeconds,
		ResultsSeconds: &r.ResultsSeconds,
		BaseReward:     &r.BaseReward,
		FirstBonus:     &r.FirstBonus,
		DailyBonus:     &r.DailyBonus,
		BallotSize:     &r.BallotSize,
		CourseTypes:    cfg.CourseTypes,
	})
}

// postConfig POST /admin/config 以 JSON 载荷更新部分字段，下一阶段生效
func (s *Server) postConfig(c *gin.Context) {
	var body roundPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	r := s.game.Config().Round
	if body.LobbySeconds != nil {
		r.LobbySeconds = *body.LobbySeconds
	}
	if body.VotingSeconds != nil {
		r.VotingSeconds = *body.VotingSeconds
	}
	if body.RunSeconds != nil {
		r.RunSeconds = *body.RunSeconds
	}
	if body.ResultsSeconds != nil {
		r.ResultsSeconds = *body.ResultsSeconds
	}
	if body.BaseReward != nil {
		r.BaseReward = *body.BaseReward
	}
	if body.FirstBonus != nil {
		r.FirstBonus = *body.FirstBonus
	}
	if body.DailyBonus != nil {
		r.DailyBonus = *body.DailyBonus
	}
	if body.BallotSize != nil {
		r.BallotSize = *body.BallotSize
	}
	// 先整体校验，任一部分非法时不做任何修改
	if err := r.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.CourseTypes != nil {
		if err := config.ValidateCatalog(body.CourseTypes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.game.UpdateRound(r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.CourseTypes != nil {
		if err := s.game.UpdateCatalog(body.CourseTypes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	logger.Log.Infof("config updated via admin: %+v catalog=%v", r, body.CourseTypes)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

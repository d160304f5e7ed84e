package round

import (
	"context"
	"fmt"

	"courserush/logger"
	"courserush/store"
)

const (
	LeaderboardWins  = "wins"
	LeaderboardCoins = "coins"

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Join 参与者进入大厅；当日首次进入时发放每日奖励
func (c *Controller) Join(ctx context.Context, id string) bool {
	if !c.roster.Join(id, LobbyPose) {
		return false
	}
	logger.Log.Infof("participant joined: %s", id)

	bonus := c.roundConfig().DailyBonus
	if bonus > 0 && c.inventory.ClaimDaily(ctx, id, c.now()) {
		balance := c.balances.Award(ctx, id, bonus)
		logger.Log.Infof("daily bonus: %s +%d", id, bonus)
		c.presenter.BalanceUpdate(id, balance)
		c.achievements.CheckAll(ctx, id)
	} else {
		c.presenter.BalanceUpdate(id, c.balances.Get(ctx, id))
	}
	c.broadcastStatus()
	return true
}

func (c *Controller) Leave(id string) {
	c.roster.Leave(id)
	logger.Log.Infof("participant left: %s", id)
	c.broadcastStatus()
}

// ToggleAway 返回切换后的状态
func (c *Controller) ToggleAway(id string) (bool, error) {
	away, ok := c.roster.ToggleAway(id)
	if !ok {
		return false, ErrUnknownPlayer
	}
	logger.Log.Debugf("away toggled: %s away=%v", id, away)
	return away, nil
}

// Purchase 购买商店道具；失败时不改变任何状态
func (c *Controller) Purchase(ctx context.Context, id, itemID string) error {
	item, ok := c.Config().Item(itemID)
	if !ok {
		return fmt.Errorf("purchase %q: %w", itemID, ErrUnknownItem)
	}
	if c.inventory.HasItem(ctx, id, item.ID) {
		return fmt.Errorf("purchase %q: %w", itemID, ErrAlreadyOwned)
	}
	if !c.balances.TrySpend(ctx, id, item.Cost) {
		return fmt.Errorf("purchase %q: %w", itemID, ErrInsufficientFunds)
	}
	c.inventory.AddItem(ctx, id, item.ID)
	logger.Log.Infof("purchase: %s bought %s for %d", id, item.ID, item.Cost)
	c.presenter.BalanceUpdate(id, c.balances.Get(ctx, id))
	c.achievements.CheckAll(ctx, id)
	return nil
}

func (c *Controller) Equip(ctx context.Context, id, itemID string) error {
	if _, ok := c.Config().Item(itemID); !ok {
		return fmt.Errorf("equip %q: %w", itemID, ErrUnknownItem)
	}
	if !c.inventory.HasItem(ctx, id, itemID) {
		return fmt.Errorf("equip %q: %w", itemID, ErrNotOwned)
	}
	c.inventory.Equip(ctx, id, itemID)
	return nil
}

func (c *Controller) Inventory(ctx context.Context, id string) InventoryView {
	items := c.inventory.ListItems(ctx, id)
	if items == nil {
		items = []string{}
	}
	return InventoryView{
		Items:    items,
		Equipped: c.inventory.Equipped(ctx, id),
		Balance:  c.balances.Get(ctx, id),
	}
}

// Leaderboard kind 为 wins 或 coins；每行附带按胜场计算的称号
func (c *Controller) Leaderboard(ctx context.Context, kind string, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	var entries []store.Entry
	switch kind {
	case LeaderboardWins, "":
		entries = c.wins.TopN(ctx, limit)
	case LeaderboardCoins:
		entries = c.balances.Top(ctx, limit)
	default:
		return nil, fmt.Errorf("leaderboard %q: %w", kind, ErrUnknownBoard)
	}

	conf := c.Config()
	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		wins := e.Total
		if kind == LeaderboardCoins {
			wins = c.wins.GetWins(ctx, e.ID)
		}
		rows = append(rows, LeaderboardRow{Rank: i + 1, ID: e.ID, Total: e.Total, Title: conf.TitleFor(wins)})
	}
	return rows, nil
}

func (c *Controller) broadcastLeaderboard(ctx context.Context) {
	rows, err := c.Leaderboard(ctx, LeaderboardWins, defaultLeaderboardLimit)
	if err != nil {
		return
	}
	c.presenter.LeaderboardUpdate(LeaderboardWins, rows)
}

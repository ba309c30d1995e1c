package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
)

// Achievement — фиксированная запись каталога наград.
type Achievement struct {
	Code   string
	Title  string
	Points int
}

// Каталог фиксирован в коде: награды — часть продукта, не данных.
var Catalog = []Achievement{
	{Code: "first_config", Title: "Первое подключение", Points: 10},
	{Code: "first_payment", Title: "Первая оплата", Points: 20},
	{Code: "referral_1", Title: "Привёл друга", Points: 10},
	{Code: "referral_5", Title: "Пять друзей", Points: 30},
	{Code: "streak_7", Title: "Неделя без пропусков", Points: 15},
	{Code: "level_5", Title: "Пятый уровень", Points: 50},
}

func achievementByCode(code string) *Achievement {
	for i := range Catalog {
		if Catalog[i].Code == code {
			return &Catalog[i]
		}
	}
	return nil
}

// Service объединяет триал, рефералку, ежедневный бонус и уровни.
// Все начисления идут через AddPoints с последующей проверкой уровня.
type Service struct {
	games *repo.GameStore
	subs  *repo.SubscriptionStore
	cfg   *config.Config
	log   *logrus.Entry
	rng   *rand.Rand
	now   func() time.Time
}

func NewService(games *repo.GameStore, subs *repo.SubscriptionStore, cfg *config.Config, log *logrus.Entry) *Service {
	return &Service{
		games: games,
		subs:  subs,
		cfg:   cfg,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// ActivateTrial выдаёт пробный период ровно один раз за всю жизнь
// пользователя. Отметка об активации переживает истечение подписки.
func (s *Service) ActivateTrial(ctx context.Context, userID int64) (days int, activated bool, err error) {
	if !s.cfg.Game.TrialEnabled {
		return 0, false, nil
	}
	ok, err := s.subs.ActivateTrial(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	days = s.cfg.Game.TrialDays
	if _, err := s.subs.Extend(ctx, userID, days, fmt.Sprintf("trial-%d", userID), true); err != nil {
		return 0, false, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "days": days}).Info("trial activated")
	return days, true, nil
}

// RegisterReferral привязывает нового пользователя к пригласившему
// и начисляет тому бонус. Повторная привязка и самоприглашение — no-op,
// referrerID тогда равен нулю.
func (s *Service) RegisterReferral(ctx context.Context, newUserID int64, code string) (referrerID int64, bonus int, err error) {
	if !s.cfg.Game.ReferralEnabled || code == "" {
		return 0, 0, nil
	}
	referrer, err := s.games.ByReferralCode(ctx, code)
	if err != nil {
		return 0, 0, err
	}
	if referrer == nil || referrer.UserID == newUserID {
		return 0, 0, nil
	}
	linked, err := s.games.RecordReferral(ctx, newUserID, referrer.UserID)
	if err != nil {
		return 0, 0, err
	}
	if !linked {
		return 0, 0, nil
	}

	bonus = s.cfg.Game.ReferralBonusNext
	if referrer.Referrals == 0 {
		bonus = s.cfg.Game.ReferralBonusFirst
	}
	if _, err := s.addPoints(ctx, referrer.UserID, bonus); err != nil {
		return 0, 0, err
	}

	s.awardOnce(ctx, referrer.UserID, "referral_1")
	if referrer.Referrals+1 >= 5 {
		s.awardOnce(ctx, referrer.UserID, "referral_5")
	}
	s.log.WithFields(logrus.Fields{
		"referrer": referrer.UserID,
		"invited":  newUserID,
		"bonus":    bonus,
	}).Info("referral registered")
	return referrer.UserID, bonus, nil
}

// ClaimDailyBonus выдаёт случайные очки раз в календарные сутки (UTC).
// Возвращает claimed=false без ошибки, если сегодня уже забирали.
func (s *Service) ClaimDailyBonus(ctx context.Context, userID int64) (points, streak int, claimed bool, err error) {
	if !s.cfg.Game.DailyBonusEnabled {
		return 0, 0, false, nil
	}
	streak, claimed, err = s.games.ClaimDailyBonus(ctx, userID, s.now())
	if err != nil || !claimed {
		return 0, streak, claimed, err
	}

	min, max := s.cfg.Game.DailyBonusMin, s.cfg.Game.DailyBonusMax
	points = min
	if max > min {
		points += s.rng.Intn(max - min + 1)
	}
	if _, err := s.addPoints(ctx, userID, points); err != nil {
		return 0, streak, true, err
	}
	if streak >= 7 {
		s.awardOnce(ctx, userID, "streak_7")
	}
	return points, streak, true, nil
}

// RewardPurchase начисляет очки за оплаченную подписку: по 20 за месяц.
// Первая покупка дополнительно отмечается наградой.
func (s *Service) RewardPurchase(ctx context.Context, userID int64, months int) (points int, err error) {
	points = months * 20
	if _, err := s.addPoints(ctx, userID, points); err != nil {
		return 0, err
	}
	s.awardOnce(ctx, userID, "first_payment")
	return points, nil
}

// GrantAchievement начисляет награду из каталога, если ещё не выдана.
func (s *Service) GrantAchievement(ctx context.Context, userID int64, code string) (granted bool, err error) {
	a := achievementByCode(code)
	if a == nil {
		return false, fmt.Errorf("unknown achievement %q", code)
	}
	granted, err = s.games.Award(ctx, userID, code)
	if err != nil || !granted {
		return granted, err
	}
	if _, err := s.addPoints(ctx, userID, a.Points); err != nil {
		return true, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "code": code}).Info("achievement granted")
	return true, nil
}

// Profile — текущее игровое состояние вместе со списком наград.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.GameProfile, []models.AchievementAward, error) {
	p, err := s.games.Profile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	awards, err := s.games.Awards(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return p, awards, nil
}

func (s *Service) ReferralLink(ctx context.Context, userID int64) (string, error) {
	p, err := s.games.Profile(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/%s?start=ref_%s", s.cfg.Telegram.Username, p.ReferralCode), nil
}

// addPoints — единая точка начисления: после неё проверяем переход уровня.
func (s *Service) addPoints(ctx context.Context, userID int64, points int) (*models.GameProfile, error) {
	p, err := s.games.AddPoints(ctx, userID, points)
	if err != nil {
		return nil, err
	}
	return s.maybeLevelUp(ctx, p)
}

// maybeLevelUp повышает уровень за каждые LevelUpPoints очков и продлевает
// подписку на LevelRewardDays за каждый взятый уровень.
func (s *Service) maybeLevelUp(ctx context.Context, p *models.GameProfile) (*models.GameProfile, error) {
	per := s.cfg.Game.LevelUpPoints
	if per <= 0 {
		return p, nil
	}
	target := p.Points/per + 1
	for p.Level < target {
		next := p.Level + 1
		if err := s.games.SetLevel(ctx, p.UserID, next); err != nil {
			return p, err
		}
		p.Level = next
		if days := s.cfg.Game.LevelRewardDays; days > 0 {
			payID := fmt.Sprintf("level-%d-%d", p.UserID, next)
			if _, err := s.subs.Extend(ctx, p.UserID, days, payID, false); err != nil {
				s.log.WithError(err).WithField("user_id", p.UserID).
					Warn("level reward extension failed")
			}
		}
		if next >= 5 {
			s.awardOnce(ctx, p.UserID, "level_5")
		}
		s.log.WithFields(logrus.Fields{"user_id": p.UserID, "level": next}).Info("level up")
	}
	return p, nil
}

// awardOnce — выдача награды без прокидывания ошибки наружу:
// геймификация не должна ломать основной поток.
func (s *Service) awardOnce(ctx context.Context, userID int64, code string) {
	if _, err := s.GrantAchievement(ctx, userID, code); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "code": code}).
			Warn("achievement grant failed")
	}
}

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daeguwebtoon/chatcore/destinations"
	"github.com/daeguwebtoon/chatcore/engine"
	"github.com/daeguwebtoon/chatcore/logger"
	"github.com/daeguwebtoon/chatcore/version"
)

const newChatGreeting = "안녕! 나는 대구-대구야! 대구역에 도착했구나? 오늘 뭐 하고 싶어?"

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

// spotPayload attaches the canonical key to a destination's data.
type spotPayload struct {
	ID string `json:"id"`
	destinations.Spot
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "메시지가 필요합니다",
		})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := s.engine.Chat(c.Request.Context(), sessionID, req.UserName, strings.TrimSpace(req.Message))
	if err != nil {
		logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":  false,
			"error":    "서버 오류가 발생했습니다",
			"response": "미안, 뭔가 문제가 생겼어! 다시 해볼래?",
		})
		return
	}

	if !res.Success {
		c.JSON(http.StatusOK, gin.H{
			"success":    false,
			"response":   res.Message,
			"sessionId":  res.SessionID,
			"character":  characterName,
			"terminated": res.Terminated,
			"endCut":     res.EndCut,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"response":       res.Message,
		"sessionId":      res.SessionID,
		"stage":          res.Stage,
		"emotion":        res.Emotion,
		"character":      characterName,
		"recommendation": res.Recommendation,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"terminated":     res.Terminated,
		"warning":        res.Warning,
		"endCut":         res.EndCut,
		"silent":         res.Silent,
		"strikes":        res.Strikes,
		"invalidInput":   res.InvalidInput,
	})
}

func (s *Server) handleNewChat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": uuid.NewString(),
		"message":   newChatGreeting,
		"character": characterName,
		"stage":     "greeting",
	})
}

func (s *Server) handleResetChat(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := s.engine.Reset(c.Request.Context(), sessionID); err != nil {
		logger.Error("session reset failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "세션 초기화 실패",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   engine.ResetMessage,
		"sessionId": sessionID,
	})
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	info, err := s.engine.SessionInfo(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "세션 정보 조회 실패",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": info,
	})
}

func (s *Server) handleListSpots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spots":   s.engine.Destinations().Spots,
	})
}

func (s *Server) handleGetSpot(c *gin.Context) {
	spotID := c.Param("spotId")
	spot, ok := s.engine.Destinations().Spot(spotID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "명소를 찾을 수 없습니다",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spot":    spotPayload{ID: spotID, Spot: spot},
	})
}

// handleVisitSpot confirms a destination choice and hands the frontend its
// webtoon-transition cue.
func (s *Server) handleVisitSpot(c *gin.Context) {
	spotID := c.Param("spotId")
	spot, ok := s.engine.Destinations().Spot(spotID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "명소를 찾을 수 없습니다",
		})
		return
	}

	var req chatRequest
	_ = c.ShouldBindJSON(&req)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := s.engine.Chat(c.Request.Context(), sessionID, "", spot.Name+"에 가기로 했어요!")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "명소 방문 처리 실패",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "좋아! " + spot.Name + "으로 가자! 🚇",
		"aiResponse": res.Message,
		"spot":       spotPayload{ID: spotID, Spot: spot},
		"nextAction": "webtoon_transition",
	})
}

// handleArriveSpot locks a session to a destination after the webtoon cut
// scene, then lets the character acknowledge the arrival.
func (s *Server) handleArriveSpot(c *gin.Context) {
	spotID := c.Param("spotId")
	spot, ok := s.engine.Destinations().Spot(spotID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "명소를 찾을 수 없습니다",
		})
		return
	}

	var req chatRequest
	_ = c.ShouldBindJSON(&req)
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "sessionId가 필요합니다",
		})
		return
	}

	sess, err := s.engine.SetArrival(c.Request.Context(), req.SessionID, spotID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "잘못된 명소 ID",
		})
		return
	}

	res, err := s.engine.Chat(c.Request.Context(), req.SessionID, "", spot.Name+"에 도착했어!")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "명소 도착 처리 실패",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"arrived":      true,
		"spot":         spotPayload{ID: spotID, Spot: spot},
		"sessionId":    req.SessionID,
		"aiResponse":   res.Message,
		"arrivalIntro": "여긴 " + spot.Name + "! 도착했어. 궁금한 거 있어?",
		"stage":        sess.Stage,
	})
}

// handlePolicy surfaces the active keyword lists for operator review.
func (s *Server) handlePolicy(c *gin.Context) {
	dests := s.engine.Destinations()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"policy": gin.H{
			"lists": gin.H{
				"otherCities":      dests.OtherCities,
				"moveKeywords":     dests.MoveKeywords,
				"foodKeywords":     dests.FoodKeywords,
				"travelKeywords":   dests.TravelKeywords,
				"offTopicKeywords": dests.OffTopicKeywords,
				"profanity":        dests.Profanity,
				"criticalTerms":    dests.CriticalTerms,
				"jailbreakPhrases": dests.JailbreakPhrases,
			},
			"notice": "상호명 금지, 도착지 집중, 3회 경고 시 대화 종료",
		},
	})
}

func (s *Server) handlePolicyLogs(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "logs": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": s.audit.ReadRecent(200)})
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     version.Version(),
		"sessions":    stats,
		"termination": s.engine.TerminationState(),
	})
}

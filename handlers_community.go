package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// getCommunityTips lists approved tips, newest first
func (s *Server) getCommunityTips(c *gin.Context) {
	tips, err := cached(c.Request.Context(), s.cache, cacheKeyTips, communityTTL, s.store.ListApprovedTips)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, tips)
}

type tipRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required"`
}

// addCommunityTip stores a tip for moderation. It is not listed until approved.
func (s *Server) addCommunityTip(c *gin.Context) {
	var req tipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid tip data", err)
		return
	}

	ctx := c.Request.Context()
	tip, err := s.store.CreateTip(ctx, CommunityTip{
		UserID:  currentUser(c).ID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.cache.Delete(ctx, cacheKeyTips)
	c.JSON(http.StatusCreated, tip)
}

func (s *Server) likeCommunityTip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tip, err := s.store.LikeTip(ctx, id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Tip not found"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.cache.Delete(ctx, cacheKeyTips)
	c.JSON(http.StatusOK, tip)
}

func (s *Server) getDeals(c *gin.Context) {
	deals, err := cached(c.Request.Context(), s.cache, cacheKeyDeals, communityTTL, s.store.ListDeals)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, deals)
}

type dealRequest struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description string  `json:"description" binding:"required"`
	Location    string  `json:"location" binding:"required,max=255"`
	ValidUntil  *string `json:"validUntil"`
	Link        *string `json:"link" binding:"omitempty,url"`
}

func (s *Server) addDeal(c *gin.Context) {
	var req dealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid deal data", err)
		return
	}

	deal := Deal{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Link:        req.Link,
	}
	if req.ValidUntil != nil && *req.ValidUntil != "" {
		validUntil, _, err := parseDate(*req.ValidUntil)
		if err != nil {
			badRequest(c, "Invalid deal data", err)
			return
		}
		deal.ValidUntil = &validUntil
	}

	ctx := c.Request.Context()
	created, err := s.store.CreateDeal(ctx, deal)
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.cache.Delete(ctx, cacheKeyDeals)
	c.JSON(http.StatusCreated, created)
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postgroup/internal/service"
	"github.com/maheshrc27/postgroup/internal/transfer"
	"go.uber.org/zap"
)

type GroupHandler struct {
	posts  service.PostService
	status service.StatusService
	retry  service.RetryService
	log    *zap.Logger
}

func NewGroupHandler(posts service.PostService, status service.StatusService, retry service.RetryService, log *zap.Logger) *GroupHandler {
	return &GroupHandler{posts: posts, status: status, retry: retry, log: log}
}

func (h *GroupHandler) Submit(c *fiber.Ctx) error {
	var gs transfer.GroupSubmission
	if err := c.BodyParser(&gs); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}

	resp, err := h.posts.SubmitGroup(c.UserContext(), GetUserID(c), &gs)
	if err != nil {
		return h.fail(c, "submit group", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *GroupHandler) Status(c *fiber.Ctx) error {
	resp, err := h.status.GroupStatus(c.UserContext(), GetUserID(c), c.Params("groupId"))
	if err != nil {
		return h.fail(c, "group status", err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *GroupHandler) Retry(c *fiber.Ctx) error {
	resp, err := h.retry.RetryGroup(c.UserContext(), GetUserID(c), c.Params("groupId"))
	if err != nil {
		return h.fail(c, "retry group", err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *GroupHandler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Group not found")
	case errors.Is(err, service.ErrInvalidSubmission):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	h.log.Error(op+" failed",
		zap.Int64("user_id", GetUserID(c)),
		zap.String("group_id", c.Params("groupId")),
		zap.Error(err),
	)
	return errorJSON(c, fiber.StatusInternalServerError, "Something went wrong")
}

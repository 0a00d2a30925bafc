package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"graphmail/utils"
)

// Recover turns a panic inside a handler into an error for ErrorHandler and
// reports it to Sentry with the stack attached.
func Recover() fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			utils.LogError("panic_recovered", fmt.Errorf("panic: %v", e), logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"stack":  string(debug.Stack()),
			})
		},
	})
}

// ErrorHandler renders every unhandled error as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		utils.LogError("unhandled_error", err, logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		})
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

package handler

import (
	"fmt"
	"sync"

	"taskflow/internal/permission"
	"taskflow/pkg/util"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "role" and "objectid" tags to gin's validator.
// Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return permission.Role(fl.Field().String()).Valid()
		}); err != nil {
			return
		}
		err = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return util.IsValidObjectID(fl.Field().String())
		})
	})
	return err
}

package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
	"tqs/src/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrBadCredentials = errors.New("invalid email or password")

func AuthLogin(ctx *gin.Context) (resp *types.LoginResponse, status int, err error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}

	gdb := db.GetDb()
	var user models.User
	if err := gdb.
		Model(&models.User{}).
		Where("email = ?", body.Email).
		First(&user).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusUnauthorized, ErrBadCredentials
		}
		log.Printf("[AuthLogin] lookup error: %s\n", err.Error())
		return nil, http.StatusInternalServerError, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		return nil, http.StatusUnauthorized, ErrBadCredentials
	}

	token, err := utils.GenerateJWT(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		log.Printf("[AuthLogin] could not sign token for user %s: %s\n", user.ID.String(), err.Error())
		return nil, http.StatusInternalServerError, err
	}

	return &types.LoginResponse{
		AccessToken: token,
		User: types.APIResponseUser{
			ID:    user.ID.String(),
			Email: user.Email,
			Name:  user.Name,
			Role:  string(user.Role),
		},
	}, http.StatusOK, nil
}

func AuthRegister(ctx *gin.Context) (resp *types.APIResponseUser, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	user := models.User{
		Email:        body.Email,
		Name:         body.Name,
		PasswordHash: string(hash),
		Role:         types.ROLE_USER,
	}
	gdb := db.GetDb()
	if err := gdb.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, http.StatusConflict, errors.New("email is already registered")
		}
		log.Printf("[AuthRegister] insert error: %s\n", err.Error())
		return nil, http.StatusInternalServerError, err
	}

	return &types.APIResponseUser{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
	}, http.StatusCreated, nil
}

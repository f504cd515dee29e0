// Package handlers exposes the HTTP surface and owns the translation from
// pipeline error kinds to HTTP status codes.
package handlers

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/bg-removal/internal/usecase"
)

// apiResponse is the uniform envelope for every JSON response.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    gin.H  `json:"data,omitempty"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.RemovalUseCase) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, apiResponse{
			Success: true,
			Message: "AI Background Removal API is running",
			Data: gin.H{
				"endpoints": gin.H{
					"POST /remove-background":     "Remove background from image",
					"POST /remove-background/url": "Remove background from image URL",
					"GET /status":                 "Get model status",
					"POST /load-model":            "Load/reload model",
				},
			},
		})
	})

	router.GET("/status", func(c *gin.Context) {
		loaded, device, modelName := uc.ModelStatus()
		c.JSON(http.StatusOK, gin.H{
			"loaded":     loaded,
			"device":     device,
			"model_name": modelName,
		})
	})

	router.POST("/load-model", func(c *gin.Context) {
		if err := uc.ReloadModel(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		_, device, _ := uc.ModelStatus()
		c.JSON(http.StatusOK, apiResponse{
			Success: true,
			Message: "Model loaded successfully",
			Data:    gin.H{"device": device},
		})
	})

	router.POST("/remove-background", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{
				Success: false,
				Message: "image file is required (form field 'file')",
			})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{
				Success: false,
				Message: "unable to open uploaded file",
			})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apiResponse{
				Success: false,
				Message: "failed to read uploaded file",
			})
			return
		}

		contentType := file.Header.Get("Content-Type")
		result, err := uc.RemoveFromUpload(c.Request.Context(), data, contentType, file.Size)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename=background_removed.png`)
		c.Data(http.StatusOK, "image/png", result.PNG)
	})

	router.POST("/remove-background/url", func(c *gin.Context) {
		imageURL := c.Query("image_url")
		if imageURL == "" {
			imageURL = c.PostForm("image_url")
		}
		if imageURL == "" {
			c.JSON(http.StatusBadRequest, apiResponse{
				Success: false,
				Message: "image_url is required",
			})
			return
		}

		result, err := uc.RemoveFromURL(c.Request.Context(), imageURL)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, apiResponse{
			Success: true,
			Message: "Background removed successfully",
			Data: gin.H{
				"image":  base64.StdEncoding.EncodeToString(result.PNG),
				"format": "PNG",
				"size":   []int{result.Width, result.Height},
			},
		})
	})

	router.GET("/health", func(c *gin.Context) {
		loaded, device, _ := uc.ModelStatus()
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"model_loaded": loaded,
			"device":       device,
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apiResponse{
			Success: false,
			Message: "Endpoint not found",
		})
	})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForKind(usecase.KindOf(err)), apiResponse{
		Success: false,
		Message: err.Error(),
	})
}

func statusForKind(kind usecase.Kind) int {
	switch kind {
	case usecase.KindValidation, usecase.KindDownload:
		return http.StatusBadRequest
	case usecase.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

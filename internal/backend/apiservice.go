package backend

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/skinscan/internal/backend/database"
	"github.com/jo-hoe/skinscan/internal/common"
	"github.com/jo-hoe/skinscan/internal/imaging"
)

const defaultUserID = 1

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

type APIService struct {
	config     *BackendConfig
	database   database.DatabaseService
	classifier Classifier
	metrics    *Metrics
	now        func() time.Time
}

type predictionItem struct {
	Filename   string  `json:"filename"`
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image"`
}

type predictResponse struct {
	Success     bool             `json:"success"`
	Predictions []predictionItem `json:"predictions"`
}

type historyItem struct {
	ID               int64   `json:"id"`
	ImagePath        string  `json:"image_path"`
	PredictedDisease string  `json:"predicted_disease"`
	Confidence       float64 `json:"confidence"`
	CreatedAt        string  `json:"created_at"`
}

type historyResponse struct {
	Success bool          `json:"success"`
	History []historyItem `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type historyRequest struct {
	UserID int `query:"user_id" validate:"min=1"`
}

type deleteHistoryRequest struct {
	UserID int `param:"user_id" validate:"required,min=1"`
}

func NewAPIService(config *BackendConfig, databaseService database.DatabaseService, classifier Classifier, metrics *Metrics) *APIService {
	if classifier == nil {
		classifier = FallbackClassifier{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &APIService{
		config:     config,
		database:   databaseService,
		classifier: classifier,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = &common.GenericEchoValidator{}
	}
	e.Use(s.metrics.Middleware())

	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})
	e.GET("/metrics", s.metrics.Handler())

	e.POST("/predict", s.predictHandler)
	e.GET("/history", s.historyHandler)
	e.DELETE("/history/:user_id", s.deleteHistoryHandler)
}

func (s *APIService) predictHandler(ctx echo.Context) error {
	req := ctx.Request()
	req.Body = http.MaxBytesReader(ctx.Response(), req.Body, s.config.MaxUploadBytes)

	form, err := ctx.MultipartForm()
	if err != nil {
		slog.Error("predictHandler: failed to parse multipart form", "status", http.StatusBadRequest, "error", err)
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "No image provided"})
	}
	files := form.File["image"]
	if len(files) == 0 {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "No image provided"})
	}
	if files[0].Filename == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "No image selected"})
	}
	for _, file := range files {
		if file.Filename != "" && !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid file type. Only PNG, JPG, and JPEG are allowed."})
		}
	}
	if len(files) > s.config.MaxImages {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("Maximum %d images allowed", s.config.MaxImages)})
	}

	userID := defaultUserID
	if raw := ctx.FormValue("user_id"); raw != "" {
		userID, err = strconv.Atoi(raw)
		if err != nil || userID < 1 {
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid user_id"})
		}
	}

	var vectors [][]float64
	var firstImage string
	for _, file := range files {
		if file.Filename == "" {
			continue
		}
		data, err := readFormFile(file)
		if err != nil {
			slog.Error("predictHandler: failed to read uploaded file",
				"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
			return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to read uploaded file"})
		}

		if firstImage == "" {
			firstImage = imaging.EncodeDataURI(contentType(file, data), data)
		}

		input, err := Preprocess(data)
		if err != nil {
			slog.Warn("predictHandler: failed to decode image",
				"status", http.StatusBadRequest, "error", err, "filename", file.Filename)
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("Failed to decode image %s", file.Filename)})
		}
		probs, err := s.classifier.Classify(input)
		if err != nil {
			slog.Error("predictHandler: classification failed",
				"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
			return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		vectors = append(vectors, probs)
	}
	if len(vectors) == 0 {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "No valid images processed"})
	}

	classIdx, confidence, err := Aggregate(vectors)
	if err != nil {
		slog.Error("predictHandler: failed to aggregate predictions", "status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	disease := DiseaseClasses[classIdx]

	_, err = s.database.CreatePrediction(&database.Prediction{
		UserID:           userID,
		ImagePath:        firstImage,
		PredictedDisease: disease,
		Confidence:       confidence,
		CreatedAt:        s.now().UTC(),
	})
	if err != nil {
		slog.Error("predictHandler: failed to store prediction",
			"status", http.StatusInternalServerError, "error", err, "user_id", userID)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to store prediction"})
	}
	s.metrics.observePrediction(disease, len(vectors))
	slog.Info("aggregated prediction", "user_id", userID, "disease", disease, "confidence", confidence, "images", len(vectors))

	return ctx.JSON(http.StatusOK, predictResponse{
		Success: true,
		Predictions: []predictionItem{{
			Filename:   "aggregated_result",
			Disease:    disease,
			Confidence: confidence,
			Image:      firstImage,
		}},
	})
}

func (s *APIService) historyHandler(ctx echo.Context) error {
	req := historyRequest{UserID: defaultUserID}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid user_id"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid user_id"})
	}

	predictions, err := s.database.GetHistory(req.UserID, s.config.HistoryLimit)
	if err != nil {
		slog.Error("historyHandler: failed to load history",
			"status", http.StatusInternalServerError, "error", err, "user_id", req.UserID)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	history := make([]historyItem, 0, len(predictions))
	for _, p := range predictions {
		history = append(history, historyItem{
			ID:               p.ID,
			ImagePath:        p.ImagePath,
			PredictedDisease: p.PredictedDisease,
			Confidence:       p.Confidence,
			CreatedAt:        p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.JSON(http.StatusOK, historyResponse{Success: true, History: history})
}

func (s *APIService) deleteHistoryHandler(ctx echo.Context) error {
	var req deleteHistoryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid user_id"})
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid user_id"})
	}

	removed, err := s.database.DeleteHistory(req.UserID)
	if err != nil {
		slog.Error("deleteHistoryHandler: failed to delete history",
			"status", http.StatusInternalServerError, "error", err, "user_id", req.UserID)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	slog.Info("deleted history", "user_id", req.UserID, "count", removed)
	return ctx.JSON(http.StatusOK, map[string]any{"success": true, "deleted": removed})
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()
	return io.ReadAll(src)
}

// contentType trusts the declared part type when it is an image and sniffs
// the content otherwise.
func contentType(file *multipart.FileHeader, data []byte) string {
	declared := file.Header.Get("Content-Type")
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return mimetype.Detect(data).String()
}

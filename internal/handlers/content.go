package handlers

import (
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

var settingSections = map[string]bool{
	"general":       true,
	"security":      true,
	"notifications": true,
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ContentHandler manages website copy, settings, news and testimonials.
type ContentHandler struct {
	db      *gorm.DB
	reports *services.ReportingService
	blobs   services.BlobStore
}

// NewContentHandler constructs a ContentHandler.
func NewContentHandler(db *gorm.DB, reports *services.ReportingService, blobs services.BlobStore) *ContentHandler {
	return &ContentHandler{db: db, reports: reports, blobs: blobs}
}

// Homepage is the public landing page.
func (h *ContentHandler) Homepage(c *fiber.Ctx) error {
	page, err := h.reports.Homepage(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    page,
	})
}

// ListContent returns content rows, optionally filtered by section.
func (h *ContentHandler) ListContent(c *fiber.Ctx) error {
	query := h.db.Model(&models.WebsiteContent{})
	if section := c.Query("section"); section != "" {
		query = query.Where("section = ?", section)
	}

	var rows []models.WebsiteContent
	if err := query.Order("section asc, key asc").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
	})
}

// UpsertContent creates or replaces the value at (section, key).
func (h *ContentHandler) UpsertContent(c *fiber.Ctx) error {
	section := strings.TrimSpace(c.FormValue("section"))
	key := strings.TrimSpace(c.FormValue("key"))
	if section == "" || key == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "section and key are required")
	}

	row := models.WebsiteContent{Section: section, Key: key, Value: c.FormValue("value")}
	media, closeFn, err := formUpload(c, "media")
	if err != nil {
		return err
	}
	defer closeFn()
	if media != nil {
		stored, err := h.blobs.Save("content/"+section, media.Filename, media.Body)
		if err != nil {
			return err
		}
		row.Media = stored
	}

	saved, err := h.upsert(row, media != nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    saved,
	})
}

func (h *ContentHandler) upsert(row models.WebsiteContent, withMedia bool) (*models.WebsiteContent, error) {
	columns := []string{"value", "updated_at"}
	if withMedia {
		columns = append(columns, "media")
	}
	if err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "section"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error; err != nil {
		return nil, err
	}

	var saved models.WebsiteContent
	if err := h.db.First(&saved, "section = ? AND key = ?", row.Section, row.Key).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteContent removes the value at (section, key).
func (h *ContentHandler) DeleteContent(c *fiber.Ctx) error {
	res := h.db.Where("section = ? AND key = ?", c.Params("section"), c.Params("key")).Delete(&models.WebsiteContent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "content not found")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Content deleted",
	})
}

// GetSettings returns a settings section as a key/value map.
func (h *ContentHandler) GetSettings(c *fiber.Ctx) error {
	section := c.Params("section")
	if !settingSections[section] {
		return fiber.NewError(fiber.StatusNotFound, "unknown settings section")
	}

	var rows []models.WebsiteContent
	if err := h.db.Where("section = ?", section).Find(&rows).Error; err != nil {
		return err
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    settings,
	})
}

// SaveSettings stores every key/value of a settings section in one transaction.
func (h *ContentHandler) SaveSettings(c *fiber.Ctx) error {
	section := c.Params("section")
	if !settingSections[section] {
		return fiber.NewError(fiber.StatusNotFound, "unknown settings section")
	}

	var values map[string]string
	if err := c.BodyParser(&values); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(values) == 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "no settings provided")
	}

	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := models.WebsiteContent{Section: section, Key: key, Value: value}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "section"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    values,
	})
}

// ListNews returns news articles, newest first.
func (h *ContentHandler) ListNews(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.News{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(title) LIKE ?", likePattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var news []models.News
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&news).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       news,
		"pagination": pg.Meta(total),
	})
}

type newsForm struct {
	Title   string
	Excerpt string
	Body    string
	Status  string
}

func readNewsForm(c *fiber.Ctx) newsForm {
	return newsForm{
		Title:   strings.TrimSpace(c.FormValue("title")),
		Excerpt: c.FormValue("excerpt"),
		Body:    c.FormValue("body"),
		Status:  c.FormValue("status"),
	}
}

func validNewsStatus(status string) bool {
	switch status {
	case models.NewsDraft, models.NewsPublished, models.NewsArchived:
		return true
	}
	return false
}

// CreateNews adds an article, published immediately when status says so.
func (h *ContentHandler) CreateNews(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	form := readNewsForm(c)
	if form.Title == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "title is required")
	}
	if form.Status == "" {
		form.Status = models.NewsDraft
	}
	if !validNewsStatus(form.Status) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid news status")
	}

	code, err := utils.RandomCode(4)
	if err != nil {
		return err
	}
	news := models.News{
		Title:    form.Title,
		Slug:     slugify(form.Title) + "-" + strings.ToLower(code),
		Excerpt:  form.Excerpt,
		Body:     form.Body,
		Status:   form.Status,
		AuthorID: &actor.ID,
	}
	if news.Status == models.NewsPublished {
		now := time.Now()
		news.PublishedAt = &now
	}

	cover, closeFn, err := formUpload(c, "cover_image")
	if err != nil {
		return err
	}
	defer closeFn()
	if cover != nil {
		if news.CoverImage, err = h.blobs.Save("news", cover.Filename, cover.Body); err != nil {
			return err
		}
	}

	if err := h.db.Create(&news).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    news,
	})
}

func (h *ContentHandler) findNews(c *fiber.Ctx) (*models.News, error) {
	id, err := uuidParam(c, "id")
	if err != nil {
		return nil, err
	}
	var news models.News
	if err := h.db.First(&news, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "news not found")
		}
		return nil, err
	}
	return &news, nil
}

// ShowNews returns one article.
func (h *ContentHandler) ShowNews(c *fiber.Ctx) error {
	news, err := h.findNews(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    news,
	})
}

// UpdateNews edits an article. The slug stays stable.
func (h *ContentHandler) UpdateNews(c *fiber.Ctx) error {
	news, err := h.findNews(c)
	if err != nil {
		return err
	}

	form := readNewsForm(c)
	updates := map[string]interface{}{}
	if form.Title != "" {
		updates["title"] = form.Title
	}
	if form.Excerpt != "" {
		updates["excerpt"] = form.Excerpt
	}
	if form.Body != "" {
		updates["body"] = form.Body
	}
	if form.Status != "" {
		if !validNewsStatus(form.Status) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid news status")
		}
		updates["status"] = form.Status
		if form.Status == models.NewsPublished && news.PublishedAt == nil {
			updates["published_at"] = time.Now()
		}
	}

	cover, closeFn, err := formUpload(c, "cover_image")
	if err != nil {
		return err
	}
	defer closeFn()
	if cover != nil {
		stored, err := h.blobs.Save("news", cover.Filename, cover.Body)
		if err != nil {
			return err
		}
		updates["cover_image"] = stored
	}

	if len(updates) > 0 {
		if err := h.db.Model(news).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := h.db.First(news, "id = ?", news.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    news,
	})
}

// PublishNews marks an article published.
func (h *ContentHandler) PublishNews(c *fiber.Ctx) error {
	news, err := h.findNews(c)
	if err != nil {
		return err
	}
	if news.Status != models.NewsPublished {
		now := time.Now()
		if err := h.db.Model(news).Updates(map[string]interface{}{
			"status":       models.NewsPublished,
			"published_at": now,
		}).Error; err != nil {
			return err
		}
		news.Status = models.NewsPublished
		news.PublishedAt = &now
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    news,
	})
}

// DeleteNews removes an article.
func (h *ContentHandler) DeleteNews(c *fiber.Ctx) error {
	news, err := h.findNews(c)
	if err != nil {
		return err
	}
	if err := h.db.Delete(news).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "News deleted",
	})
}

// ListTestimonials returns every testimonial.
func (h *ContentHandler) ListTestimonials(c *fiber.Ctx) error {
	var testimonials []models.Testimonial
	if err := h.db.Order("created_at desc").Find(&testimonials).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    testimonials,
	})
}

// CreateTestimonial adds an unapproved testimonial.
func (h *ContentHandler) CreateTestimonial(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	content := strings.TrimSpace(c.FormValue("content"))
	if name == "" || content == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "name and content are required")
	}

	testimonial := models.Testimonial{
		Name:         name,
		Organization: c.FormValue("organization"),
		Content:      content,
	}
	photo, closeFn, err := formUpload(c, "photo")
	if err != nil {
		return err
	}
	defer closeFn()
	if photo != nil {
		if testimonial.Photo, err = h.blobs.Save("testimonials", photo.Filename, photo.Body); err != nil {
			return err
		}
	}

	if err := h.db.Create(&testimonial).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    testimonial,
	})
}

// PublishTestimonial approves a testimonial for the homepage.
func (h *ContentHandler) PublishTestimonial(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	res := h.db.Model(&models.Testimonial{}).Where("id = ?", id).Update("is_approved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "testimonial not found")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Testimonial published",
	})
}

// DeleteTestimonial removes a testimonial.
func (h *ContentHandler) DeleteTestimonial(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	res := h.db.Delete(&models.Testimonial{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "testimonial not found")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Testimonial deleted",
	})
}

package site

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell/common"
	"inkwell/repository"
)

type SiteModule struct {
	posts  repository.PostRepository
	domain string
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

func NewSiteModule(posts repository.PostRepository, domain string) *SiteModule {
	return &SiteModule{posts: posts, domain: domain}
}

func (s *SiteModule) RegisterRoutes(router gin.IRouter) {
	router.GET("/sitemap.xml", s.sitemap)
}

func (s *SiteModule) sitemap(c *gin.Context) {
	ctx := c.Request.Context()

	posts, err := s.posts.Published(ctx)
	if err != nil {
		common.Log.WithError(err).Error("failed to build sitemap")
		c.Status(http.StatusInternalServerError)
		return
	}
	tags, err := s.posts.TagSlugs(ctx)
	if err != nil {
		common.Log.WithError(err).Error("failed to build sitemap")
		c.Status(http.StatusInternalServerError)
		return
	}

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        s.domain + "/",
		ChangeFreq: "daily",
		Priority:   "1.0",
	})

	for _, post := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.domain + "/post/" + url.PathEscape(post.Slug),
			LastMod:    post.UpdatedAt.UTC().Format(time.RFC3339),
			ChangeFreq: "monthly",
			Priority:   "0.6",
		})
	}

	for _, tag := range tags {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.domain + "/tag/" + url.PathEscape(tag),
			ChangeFreq: "weekly",
			Priority:   "0.4",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		common.Log.WithError(err).Error("failed to encode sitemap")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

// Package audit measures a lead's website: Lighthouse scores, CMS and
// staleness, and whether a site exists at all.
package audit

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/pkg/pagespeed"
)

// Lighthouse stack pack ids that identify a CMS or a front-end framework.
var (
	cmsPacks       = []string{"wordpress", "drupal", "joomla", "wix", "squarespace", "shopify", "magento", "prestashop"}
	frameworkPacks = []string{"react", "vue", "angular", "next.js", "nuxt", "gatsby"}
)

const (
	lowScore           = 50
	criticalScore      = 25
	slowLoadMs         = 4000
	criticalSlowLoadMs = 8000
)

// FromPageSpeed converts a Lighthouse run into a QualityAudit. A category
// scored 0 is treated as missing.
func FromPageSpeed(resp *pagespeed.Response, now time.Time) *model.QualityAudit {
	lh := resp.LighthouseResult
	finalURL := lh.FinalURL
	if finalURL == "" {
		finalURL = lh.RequestedURL
	}

	a := &model.QualityAudit{
		URL:                finalURL,
		PerformanceScore:   categoryScore(lh.Categories.Performance),
		AccessibilityScore: categoryScore(lh.Categories.Accessibility),
		SEOScore:           categoryScore(lh.Categories.SEO),
		BestPracticesScore: categoryScore(lh.Categories.BestPractices),
		IsHTTPS:            strings.HasPrefix(strings.ToLower(finalURL), "https://"),
		AuditedAt:          now,
	}

	if vp, ok := lh.Audits["viewport"]; ok && vp.Score != nil && *vp.Score == 1 {
		a.IsMobileFriendly = true
	}
	if si, ok := lh.Audits["speed-index"]; ok && si.NumericValue != nil && *si.NumericValue > 0 {
		ms := int(math.Round(*si.NumericValue))
		a.LoadTimeMs = &ms
	}

	for _, pack := range lh.StackPacks {
		id := strings.ToLower(pack.ID)
		title := pack.Title
		switch {
		case slices.Contains(cmsPacks, id):
			a.CMS = &title
		case slices.Contains(frameworkPacks, id):
			a.Framework = &title
		}
	}

	a.Issues = issuesFor(a)
	a.ComputeOverall()
	return a
}

func categoryScore(c *pagespeed.Category) *int {
	if c == nil || c.Score == nil || *c.Score == 0 {
		return nil
	}
	v := int(math.Round(*c.Score * 100))
	return &v
}

func issuesFor(a *model.QualityAudit) []model.Issue {
	var issues []model.Issue
	if !a.IsHTTPS {
		issues = append(issues, model.Issue{
			Type:           model.IssueTypeSecurity,
			Severity:       model.SeverityCritical,
			Title:          "Pas de HTTPS",
			Message:        "Le site n'utilise pas de connexion sécurisée SSL/TLS",
			Recommendation: "Installer un certificat SSL (Let's Encrypt est gratuit)",
		})
	}
	if !a.IsMobileFriendly {
		issues = append(issues, model.Issue{
			Type:           model.IssueTypeMobile,
			Severity:       model.SeverityCritical,
			Title:          "Non optimisé pour mobile",
			Message:        "Le site n'est pas correctement configuré pour les appareils mobiles",
			Recommendation: "Ajouter une balise viewport et rendre le design responsive",
		})
	}
	if p := a.PerformanceScore; p != nil && *p < lowScore {
		issues = append(issues, model.Issue{
			Type:           model.IssueTypePerformance,
			Severity:       severityBelow(*p, criticalScore),
			Title:          "Performance insuffisante",
			Message:        fmt.Sprintf("Score de performance: %d/100", *p),
			Recommendation: "Optimiser les images, activer la compression, utiliser le cache",
		})
	}
	if s := a.SEOScore; s != nil && *s < lowScore {
		issues = append(issues, model.Issue{
			Type:           model.IssueTypeSEO,
			Severity:       severityBelow(*s, criticalScore),
			Title:          "SEO insuffisant",
			Message:        fmt.Sprintf("Score SEO: %d/100", *s),
			Recommendation: "Ajouter des balises meta, optimiser les titres, améliorer la structure",
		})
	}
	if s := a.AccessibilityScore; s != nil && *s < lowScore {
		issues = append(issues, model.Issue{
			Type:           model.IssueTypeAccessibility,
			Severity:       model.SeverityWarning,
			Title:          "Accessibilité limitée",
			Message:        fmt.Sprintf("Score accessibilité: %d/100", *s),
			Recommendation: "Ajouter des attributs alt, améliorer les contrastes, structurer les titres",
		})
	}
	if ms := a.LoadTimeMs; ms != nil && *ms > slowLoadMs {
		sev := model.SeverityWarning
		if *ms > criticalSlowLoadMs {
			sev = model.SeverityCritical
		}
		issues = append(issues, model.Issue{
			Type:           model.IssueTypePerformance,
			Severity:       sev,
			Title:          "Temps de chargement élevé",
			Message:        fmt.Sprintf("Speed Index: %.1fs (recommandé < 3s)", float64(*ms)/1000),
			Recommendation: "Optimiser les ressources, utiliser un CDN, activer la compression",
		})
	}
	return issues
}

func severityBelow(score, critical int) model.Severity {
	if score < critical {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

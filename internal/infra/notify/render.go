package notify

import "fmt"

func RenderExpiringSoon(packageName string, daysLeft int) string {
	switch daysLeft {
	case 0:
		return fmt.Sprintf("Ваш абонемент «%s» истекает сегодня. Успейте использовать оставшиеся сеансы!", packageName)
	case 1:
		return fmt.Sprintf("Ваш абонемент «%s» истекает завтра. Успейте использовать оставшиеся сеансы!", packageName)
	default:
		return fmt.Sprintf("Ваш абонемент «%s» истекает через %d дн. Успейте использовать оставшиеся сеансы!", packageName, daysLeft)
	}
}

func RenderExpired(packageName string) string {
	return fmt.Sprintf("Срок действия абонемента «%s» истёк. Будем рады видеть вас снова!", packageName)
}
